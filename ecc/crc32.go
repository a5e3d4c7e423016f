package ecc

import "hash/crc32"

// CRC32 computes the IEEE CRC-32 checksum of data. tools/gentab.c in the
// reference sources generates a standard IEEE-polynomial table, so this
// wraps the standard library rather than hand-rolling the same table.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
