package daemon

import (
	"bytes"
	"encoding/binary"
	"math"
)

const iconSize = 16

// clockIcon renders a 16x16 32bpp ICO of a clock face for the tray
func clockIcon() []byte {
	const (
		headerSize = 6
		entrySize  = 16
		infoSize   = 40
		pixelBytes = iconSize * iconSize * 4
		maskStride = 4 // 16 bits padded to 32
		maskBytes  = iconSize * maskStride
		imageBytes = infoSize + pixelBytes + maskBytes
	)

	var buf bytes.Buffer
	le := binary.LittleEndian

	// ICONDIR
	binary.Write(&buf, le, uint16(0)) // reserved
	binary.Write(&buf, le, uint16(1)) // type: icon
	binary.Write(&buf, le, uint16(1)) // image count

	// ICONDIRENTRY
	buf.WriteByte(iconSize) // width
	buf.WriteByte(iconSize) // height
	buf.WriteByte(0)        // palette
	buf.WriteByte(0)        // reserved
	binary.Write(&buf, le, uint16(1))  // planes
	binary.Write(&buf, le, uint16(32)) // bits per pixel
	binary.Write(&buf, le, uint32(imageBytes))
	binary.Write(&buf, le, uint32(headerSize+entrySize))

	// BITMAPINFOHEADER, height covers XOR and AND masks
	binary.Write(&buf, le, uint32(infoSize))
	binary.Write(&buf, le, int32(iconSize))
	binary.Write(&buf, le, int32(iconSize*2))
	binary.Write(&buf, le, uint16(1))
	binary.Write(&buf, le, uint16(32))
	binary.Write(&buf, le, uint32(0)) // BI_RGB
	binary.Write(&buf, le, uint32(pixelBytes+maskBytes))
	binary.Write(&buf, le, int32(0))
	binary.Write(&buf, le, int32(0))
	binary.Write(&buf, le, uint32(0))
	binary.Write(&buf, le, uint32(0))

	// Pixels are stored bottom-up as BGRA
	for y := iconSize - 1; y >= 0; y-- {
		for x := 0; x < iconSize; x++ {
			b, g, r, a := clockPixel(x, y)
			buf.Write([]byte{b, g, r, a})
		}
	}

	// AND mask unused with an alpha channel
	buf.Write(make([]byte, maskBytes))

	return buf.Bytes()
}

func clockPixel(x, y int) (b, g, r, a byte) {
	const center = (iconSize - 1) / 2.0
	dist := math.Hypot(float64(x)-center, float64(y)-center)

	switch {
	case dist > center+0.5:
		return 0, 0, 0, 0
	case dist > center-1.5:
		return 0x80, 0x50, 0x20, 0xff // rim
	case (x == 7 || x == 8) && y >= 3 && y <= 8:
		return 0x20, 0x20, 0x20, 0xff // hour hand
	case (y == 7 || y == 8) && x >= 7 && x <= 11:
		return 0x20, 0x20, 0x20, 0xff // minute hand
	default:
		return 0xff, 0xff, 0xff, 0xff
	}
}
