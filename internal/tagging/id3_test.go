package tagging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSyncsafeRoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	encodeSyncsafe(buf, 1234567)
	if got := decodeSyncsafe(buf); got != 1234567 {
		t.Fatalf("want 1234567, got %d", got)
	}
}

func TestWriteProducesValidHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(path, []byte("fake-audio-bytes"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	w := NewID3Writer()
	if err := w.Write(path, TagSet{Title: "Creep", Artist: "Radiohead", Album: "Pablo Honey", TrackNumber: 2, Year: "1993"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data[0:3]) != "ID3" {
		t.Fatalf("missing ID3 header")
	}
	if data[3] != 3 {
		t.Fatalf("want ID3v2.3, got version byte %d", data[3])
	}

	size := decodeSyncsafe(data[6:10])
	tail := data[10+size:]
	if string(tail) != "fake-audio-bytes" {
		t.Fatalf("audio payload not preserved: %q", tail)
	}
}

func TestWriteStripsExistingTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	w := NewID3Writer()

	if err := w.Write(path, TagSet{Title: "First"}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	// Seed again with fresh audio content to make sure the second write
	// doesn't stack a second tag on top of the first.
	first, _ := os.ReadFile(path)
	size := decodeSyncsafe(first[6:10])
	audioOnly := append([]byte{}, first[10+size:]...)
	os.WriteFile(path, append(first, []byte("more-audio")...), 0o644)

	if err := w.Write(path, TagSet{Title: "Second"}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	final, _ := os.ReadFile(path)
	if string(final[0:3]) != "ID3" {
		t.Fatalf("missing ID3 header after re-write")
	}
	finalSize := decodeSyncsafe(final[6:10])
	tail := string(final[10+finalSize:])
	if tail != string(audioOnly)+"more-audio" {
		t.Fatalf("expected original audio preserved plus appended bytes, got %q", tail)
	}
}

func TestSniffMimeType(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0x00}
	if sniffMimeType(jpeg) != "image/jpeg" {
		t.Fatalf("want image/jpeg")
	}
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	if sniffMimeType(png) != "image/png" {
		t.Fatalf("want image/png")
	}
}
