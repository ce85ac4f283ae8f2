// SPDX-License-Identifier: MIT

package audio

import (
	"encoding/binary"
	"fmt"
	"os"
)

// wavWriter streams int16 mono PCM into a RIFF/WAVE file. The header is
// written with zero sizes and patched on Close, after which the file is
// fsynced so a crash never leaves a torn segment behind.
type wavWriter struct {
	f          *os.File
	sampleRate int
	dataBytes  int64
}

const wavHeaderSize = 44

func newWAVWriter(path string, sampleRate int) (*wavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("audio: create wav: %w", err)
	}
	w := &wavWriter{f: f, sampleRate: sampleRate}
	if err := w.writeHeader(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

func (w *wavWriter) writeHeader(dataLen uint32) error {
	var hdr [wavHeaderSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36+dataLen)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(w.sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(hdr[32:34], 2)                      // block align
	binary.LittleEndian.PutUint16(hdr[34:36], 16)                     // bits per sample
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataLen)

	if _, err := w.f.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("audio: write wav header: %w", err)
	}
	return nil
}

// writeSamples appends PCM data after the header.
func (w *wavWriter) writeSamples(samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	if _, err := w.f.WriteAt(buf, wavHeaderSize+w.dataBytes); err != nil {
		return fmt.Errorf("audio: write wav data: %w", err)
	}
	w.dataBytes += int64(len(buf))
	return nil
}

// close patches the header sizes, fsyncs and closes the file. Returns the
// final file size.
func (w *wavWriter) close() (int64, error) {
	if err := w.writeHeader(uint32(w.dataBytes)); err != nil {
		_ = w.f.Close()
		return 0, err
	}
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		return 0, fmt.Errorf("audio: sync wav: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return 0, fmt.Errorf("audio: close wav: %w", err)
	}
	return wavHeaderSize + w.dataBytes, nil
}
