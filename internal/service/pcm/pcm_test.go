package pcm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/erikprat61/supreme-memory/internal/models"
)

func TestConvert_SameFormatCopies(t *testing.T) {
	in := FromInt16([]int16{1, 2, 3})
	out, err := Convert(in, models.CanonicalFormat, models.CanonicalFormat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Fatalf("expected identical bytes")
	}
	out[0] = 0xff
	if in[0] == 0xff {
		t.Error("expected Convert to return a copy the caller owns")
	}
}

func TestConvert_DownmixAndResample(t *testing.T) {
	from := models.AudioFormat{SampleRateHz: 48000, BitsPerSample: 16, Channels: 2}
	to := models.Canonical(16000)

	// 480 stereo frames = 10ms at 48kHz
	samples := make([]int16, 960)
	for i := 0; i < 480; i++ {
		samples[2*i] = 1000
		samples[2*i+1] = 3000
	}

	out, err := Convert(FromInt16(samples), from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mono := ToInt16(out)
	if len(mono) != 160 {
		t.Fatalf("expected 160 samples (10ms at 16kHz), got %d", len(mono))
	}
	for i, s := range mono {
		if s != 2000 {
			t.Fatalf("sample %d: expected averaged value 2000, got %d", i, s)
		}
	}
}

func TestConvert_RejectsInvalidFormats(t *testing.T) {
	bad := models.AudioFormat{SampleRateHz: 16000, BitsPerSample: 24, Channels: 1}

	if _, err := Convert([]byte{0, 0}, bad, models.CanonicalFormat); err == nil {
		t.Error("expected error for 24-bit source")
	}
	stereo := models.AudioFormat{SampleRateHz: 16000, BitsPerSample: 16, Channels: 2}
	six := models.AudioFormat{SampleRateHz: 16000, BitsPerSample: 16, Channels: 6}
	if _, err := Convert([]byte{0, 0}, stereo, six); err == nil {
		t.Error("expected error for upmixing")
	}
}

func TestEncodeDecodeWAV(t *testing.T) {
	format := models.Canonical(8000)
	data := FromInt16([]int16{0, 100, -100, 32767, -32768})

	wavBytes, err := EncodeWAV(data, format)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(wavBytes[0:4]) != "RIFF" || string(wavBytes[8:12]) != "WAVE" {
		t.Fatalf("expected RIFF/WAVE header, got %q", wavBytes[:12])
	}

	decoded, got, err := DecodeWAV(bytes.NewReader(wavBytes))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != format {
		t.Errorf("expected format %v, got %v", format, got)
	}
	if !bytes.Equal(decoded, data) {
		t.Errorf("expected decoded PCM to match input")
	}
}

func TestDecodeFile_UnsupportedExtension(t *testing.T) {
	_, _, err := DecodeFile("notes.ogg", []byte("OggS"))
	if !errors.Is(err, ErrUnsupportedContainer) {
		t.Errorf("expected ErrUnsupportedContainer, got %v", err)
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	if _, _, err := DecodeWAV(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Error("expected error for invalid wav")
	}
}

func TestToFloat32(t *testing.T) {
	f := ToFloat32(FromInt16([]int16{-32768, 0, 16384}))
	if f[0] != -1 || f[1] != 0 || f[2] != 0.5 {
		t.Errorf("unexpected floats: %v", f)
	}
}
