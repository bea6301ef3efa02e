/*
Package honey implements honey tables: immutable, sorted key/value tables that are written
once, in key order, and then opened read-only for point lookups and ordered scans.

# Table

A table occupies a file, or a byte range of a file shared with other tables. Entries come
first, followed by a sparse index. The offset of the index (the root) and the entry count are
not stored in the table; Commit returns them as RootInfo and Open takes them back.

	+---------+---------+-----+---------+-------+
	| entry 1 | entry 2 | ... | entry n | index |
	+---------+---------+-----+---------+-------+
	^ offset                            ^ root

# Entry

Keys are front coded: every entry but the first stores how many leading bytes it shares with
the previous key and the remaining suffix. The value length is shifted left by one and the low
bit flags a compressed value; the result is written as an unsigned varint.

	first:  | key len (1) | key | varint(len<<1|c) | value |
	others: | reuse (1) | suffix len (1) | suffix | varint(len<<1|c) | value |

# Index

The first index byte selects one of three encodings:

	0x00 array:       | first (1) | last-first (1) | offset (4 BE) x (last-first+1) |
	0x01 binary chop: | count (4 BE) | { key len (1) | key (4) | offset (4 BE) } x count |
	0x02 skiplist:    | { reuse (1) | suffix len (1) | suffix | varint(offset) } ... |

A lookup consults the index to land at or before the first entry >= the target, restores the
decode context the writer had at that point, and scans forward from there.
*/
package honey
