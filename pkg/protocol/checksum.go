package protocol

// CRC-8/SMBUS: poly 0x07, init 0x00, not reflected, no final xor.
const crcPolynomial = 0x07

var crcTable = makeCRCTable()

func makeCRCTable() (t [256]byte) {
	for i := range t {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return
}

// Checksum computes the frame checksum over un-escaped [type, payload].
func Checksum(p []byte) byte {
	var crc byte
	for _, b := range p {
		crc = crcTable[crc^b]
	}
	return crc
}

func crcUpdate(crc, b byte) byte {
	return crcTable[crc^b]
}
