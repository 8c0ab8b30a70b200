package frame

const (
	crcPolynomial uint16 = 0xA001
	crcInitial    uint16 = 0xFFFF
)

// CRC16 computes the reflected CRC-16 (poly 0xA001, init 0xFFFF) of data.
// Running it over a frame including its trailing little-endian CRC yields 0.
func CRC16(data []byte) uint16 {
	return updateCRC16(crcInitial, data)
}

func updateCRC16(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ crcPolynomial
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
