package audio

import "encoding/binary"

// EncodeWAV wraps raw PCM samples in a standard RIFF/WAVE header.
func EncodeWAV(buf *Buffer) []byte {
	dataLen := len(buf.Data)
	byteRate := buf.SampleRate * buf.Channels * bytesPerSample
	blockAlign := buf.Channels * bytesPerSample

	out := make([]byte, 0, 44+dataLen)
	out = append(out, []byte("RIFF")...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+dataLen))
	out = append(out, []byte("WAVE")...)

	out = append(out, []byte("fmt ")...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, 1) // PCM
	out = binary.LittleEndian.AppendUint16(out, uint16(buf.Channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(buf.SampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(byteRate))
	out = binary.LittleEndian.AppendUint16(out, uint16(blockAlign))
	out = binary.LittleEndian.AppendUint16(out, 16) // bits per sample

	out = append(out, []byte("data")...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataLen))
	out = append(out, buf.Data...)
	return out
}
