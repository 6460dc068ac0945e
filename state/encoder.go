package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/MrEthical07/goClone/permission"
)

const (
	headerFormatVersionCurrent = 1
)

// EncodeHeader serializes everything in r except Address and Slots:
//
//	version(1) | factoryLen(1) factory | nonce(8) | createdAt(8) | maskLen(1) mask
func EncodeHeader(r *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(headerFormatVersionCurrent)

	if len(r.Factory) > 255 {
		return nil, errors.New("factory address too long")
	}
	buf.WriteByte(byte(len(r.Factory)))
	buf.WriteString(r.Factory)

	if err := binary.Write(&buf, binary.BigEndian, r.Nonce); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}

	maskBytes, err := permission.EncodeMask(r.Mask)
	if err != nil {
		return nil, err
	}
	if len(maskBytes) > 255 {
		return nil, errors.New("mask too large")
	}
	buf.WriteByte(byte(len(maskBytes)))
	buf.Write(maskBytes)

	return buf.Bytes(), nil
}

// DecodeHeader is the inverse of [EncodeHeader]. The returned record has no
// Address and an empty slot map.
func DecodeHeader(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != headerFormatVersionCurrent {
		return nil, errors.New("invalid header version")
	}

	r := &Record{Slots: map[string][]byte{}}

	factoryLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	factory := make([]byte, factoryLen)
	if _, err := io.ReadFull(reader, factory); err != nil {
		return nil, err
	}
	r.Factory = string(factory)

	if err := binary.Read(reader, binary.BigEndian, &r.Nonce); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, err
	}

	maskLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	maskBytes := make([]byte, maskLen)
	if _, err := io.ReadFull(reader, maskBytes); err != nil {
		return nil, err
	}
	r.Mask, err = permission.DecodeMask(maskBytes)
	if err != nil {
		return nil, err
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing header bytes")
	}

	return r, nil
}
