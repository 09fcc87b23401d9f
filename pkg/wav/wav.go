// Package wav provides minimal RIFF/WAVE encoding and parsing for the audio
// artifacts tesoro produces: 16-bit mono PCM files, typically at 16 kHz (the
// Azure TTS output format) or 22.05 kHz (the silence placeholder rate).
//
// The parser walks RIFF sub-chunks rather than assuming a fixed 44-byte
// header, because TTS services pad their containers differently.
package wav

import (
	"encoding/binary"
	"errors"
	"time"
)

const (
	// SilenceSampleRate is the sample rate used for generated silence.
	SilenceSampleRate = 22050

	// AzureSampleRate is the sample rate of the riff-16khz-16bit-mono-pcm
	// output format requested from Azure TTS.
	AzureSampleRate = 16000
)

// Info holds the format metadata extracted from a RIFF/WAVE header.
type Info struct {
	DataOffset int // byte offset of the first PCM sample
	DataLen    int // length of the PCM payload in bytes
	SampleRate int // samples per second
	Channels   int // 1 = mono, 2 = stereo
}

// Duration returns the play time of the PCM payload described by info,
// assuming 16-bit samples.
func (i Info) Duration() time.Duration {
	if i.SampleRate <= 0 || i.Channels <= 0 {
		return 0
	}
	samples := i.DataLen / (2 * i.Channels)
	return time.Duration(samples) * time.Second / time.Duration(i.SampleRate)
}

// Encode wraps raw little-endian 16-bit mono PCM in a RIFF/WAVE container.
func Encode(pcm []byte, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	out := make([]byte, 0, 44+len(pcm))
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+len(pcm)))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, 1) // PCM
	out = binary.LittleEndian.AppendUint16(out, channels)
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(byteRate))
	out = binary.LittleEndian.AppendUint16(out, uint16(blockAlign))
	out = binary.LittleEndian.AppendUint16(out, bitsPerSample)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(pcm)))
	out = append(out, pcm...)
	return out
}

// EncodeSilence returns a WAV file containing d seconds worth of silence at
// the given sample rate. Durations are clamped to zero when negative.
func EncodeSilence(d time.Duration, sampleRate int) []byte {
	if d < 0 {
		d = 0
	}
	frames := int(float64(sampleRate) * d.Seconds())
	return Encode(make([]byte, frames*2), sampleRate)
}

// Parse scans the RIFF/WAVE container in data and returns the location of
// the PCM payload and the audio format from the "fmt " sub-chunk.
//
// Returns an error if data is not a valid RIFF/WAVE container or if the
// data chunk cannot be located.
func Parse(data []byte) (Info, error) {
	if len(data) < 12 {
		return Info{}, errors.New("wav: too short to be a valid RIFF file")
	}
	if string(data[0:4]) != "RIFF" {
		return Info{}, errors.New("wav: missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return Info{}, errors.New("wav: missing WAVE identifier")
	}

	var info Info
	foundFmt := false

	// Walk RIFF chunks starting immediately after the 12-byte RIFF/WAVE header.
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && offset+8+16 <= len(data) {
				fmtData := data[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				foundFmt = true
			}
		case "data":
			info.DataOffset = offset + 8
			info.DataLen = chunkSize
			if info.DataOffset+info.DataLen > len(data) {
				info.DataLen = len(data) - info.DataOffset
			}
			if !foundFmt {
				// fmt chunk should appear before data, but be defensive.
				info.SampleRate = SilenceSampleRate
				info.Channels = 1
			}
			return info, nil
		}

		// Chunks are word-aligned: pad by 1 if the size is odd.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return Info{}, errors.New("wav: missing data chunk")
}
