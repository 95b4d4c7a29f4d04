package contacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/emersion/go-vcard"

	"qcall/internal/number"
)

func fingerprintOf(raw string) string {
	return number.Fingerprint(raw)
}

// VCardDirectory is a contact directory loaded from a vCard (.vcf) export.
// Cards are indexed by telephone fingerprint at load time so lookups during
// a ringing call are a single map read.
type VCardDirectory struct {
	byFingerprint map[string]string
}

// LoadVCardDirectory reads every card in the file at path. Cards without a
// formatted name or without any telephone number are skipped.
func LoadVCardDirectory(path string) (*VCardDirectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open contacts file: %w", err)
	}
	defer f.Close()

	dir, err := decodeVCards(f)
	if err != nil {
		return nil, fmt.Errorf("decode contacts file: %w", err)
	}
	return dir, nil
}

func decodeVCards(r io.Reader) (*VCardDirectory, error) {
	dir := &VCardDirectory{byFingerprint: make(map[string]string)}
	dec := vcard.NewDecoder(r)
	for {
		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		name := card.PreferredValue(vcard.FieldFormattedName)
		if name == "" {
			continue
		}
		for _, tel := range card.Values(vcard.FieldTelephone) {
			if fp := fingerprintOf(tel); fp != "" {
				dir.byFingerprint[fp] = name
			}
		}
	}
	return dir, nil
}

// ResolveName returns the display name for the number, or ErrNotFound.
func (d *VCardDirectory) ResolveName(ctx context.Context, rawNumber string) (string, error) {
	fp := fingerprintOf(rawNumber)
	if fp == "" {
		return "", ErrNotFound
	}
	name, ok := d.byFingerprint[fp]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}

// Len reports how many distinct numbers the directory indexes.
func (d *VCardDirectory) Len() int {
	return len(d.byFingerprint)
}
