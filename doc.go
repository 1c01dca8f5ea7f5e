/*
Package shelf persists dynamically-typed values under byte-string keys on top
of an embedded key-value engine (Bolt by default, see package kv).

A Value is one of nil, boolean, number, byte string, or table. Tables hold
Value keys and Value values and can nest. Values go through a compact binary
codec on the way to the engine and back.

	s, err := shelf.Open("data.shelf", shelf.Options{})
	...
	err = s.Set([]byte("config"), shelf.TableValue(shelf.TableOf(
		shelf.Str("retries"), shelf.Number(3),
		shelf.Str("verbose"), shelf.Bool(true),
	)))
	v, err := s.Get([]byte("config"))
	err = s.Set([]byte("config"), shelf.Nil) // deletes
	err = s.Close()                          // compacts, then closes

# Binary encoding

Every encoded unit is a one-byte tag, a payload, and a '!' end marker:

	'b'            false
	'B'            true
	'n' f64        number, native byte order
	's' u64 bytes  string, length in native byte order
	't' (K V)* 'T' table, each K and V is itself a unit

So a table closes with "T!", and every key and value inside it carries its
own '!'. There is no count prefix, version byte or checksum: the format is an
internal interchange between the codec and the engine, not a portable file
format. Data written on one machine can only be read back on a machine with
the same endianness and float64 representation.

Decoding is bounds-checked: truncated input, unknown tags, missing end
markers and string lengths that run past the end of the buffer are all
reported as *DataError, which matches ErrCorrupted.

# Stores

Open in read-write mode creates the store if needed; read-only mode requires
it to exist and rejects Set, Insert, Delete and Import with ErrReadOnly.
Setting Nil deletes a key. Keys are arbitrary non-empty byte strings: Bolt
and Badger cannot store the empty key, so every engine in package kv rejects
it and Set and Insert fail with kv.ErrEmptyKey. Close compacts read-write
stores, then releases the engine; afterwards every call fails with ErrClosed.

Keys walks the keys lazily, asking the engine for the key after the current
one on each step. See Cursor for what modifications during a walk are safe.
*/
package shelf
