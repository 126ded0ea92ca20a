// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package packager reads Chrome extension packages and writes Firefox
// ones. Input can be an unpacked directory, a .zip, or a .crx (whose
// signature header is stripped to reach the embedded zip); output is an
// unsigned .xpi.
package packager

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/foxlate/foxlate/services/convert/manifest"
	"github.com/foxlate/foxlate/services/convert/pipeline"
)

var (
	ErrNoManifest = errors.New("package has no manifest.json")
	ErrBadArchive = errors.New("not a readable extension package")
)

// crxMagic opens every CRX file regardless of version.
var crxMagic = []byte("Cr24")

// maxFileBytes caps a single extracted member. Extensions legitimately
// carry large bundled scripts; anything past this is suspect.
const maxFileBytes = 64 << 20

// Extract reads an extension from path, which may be an unpacked
// directory, a .zip, or a .crx. It returns the file map and the parsed
// manifest.
func Extract(path string) (map[string][]byte, *manifest.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open package %s: %w", path, err)
	}

	var files map[string][]byte
	if info.IsDir() {
		files, err = readDir(path)
	} else {
		files, err = readArchive(path)
	}
	if err != nil {
		return nil, nil, err
	}

	raw, ok := files[manifest.FileName]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoManifest, path)
	}
	doc, err := manifest.Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	return files, doc, nil
}

func readDir(root string) (map[string][]byte, error) {
	files := make(map[string][]byte)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		body, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = body
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", root, err)
	}
	return files, nil
}

func readArchive(path string) (map[string][]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read package %s: %w", path, err)
	}

	if bytes.HasPrefix(raw, crxMagic) {
		raw, err = stripCRXHeader(raw)
		if err != nil {
			return nil, err
		}
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}

	files := make(map[string][]byte, len(zr.File))
	for _, zf := range zr.File {
		name := filepath.ToSlash(zf.Name)
		if zf.FileInfo().IsDir() {
			continue
		}
		if strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
			return nil, fmt.Errorf("%w: unsafe entry name %q", ErrBadArchive, zf.Name)
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", name, err)
		}
		body, err := io.ReadAll(io.LimitReader(rc, maxFileBytes+1))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", name, err)
		}
		if len(body) > maxFileBytes {
			return nil, fmt.Errorf("%w: entry %s exceeds %d bytes", ErrBadArchive, name, maxFileBytes)
		}
		files[name] = body
	}
	return files, nil
}

// stripCRXHeader removes the signature block in front of the zip payload.
// CRX2 carries a public key and signature with explicit lengths; CRX3 a
// single length-prefixed protobuf header.
func stripCRXHeader(raw []byte) ([]byte, error) {
	if len(raw) < 16 {
		return nil, fmt.Errorf("%w: truncated crx header", ErrBadArchive)
	}
	version := binary.LittleEndian.Uint32(raw[4:8])
	switch version {
	case 2:
		keyLen := binary.LittleEndian.Uint32(raw[8:12])
		sigLen := binary.LittleEndian.Uint32(raw[12:16])
		start := 16 + uint64(keyLen) + uint64(sigLen)
		if start > uint64(len(raw)) {
			return nil, fmt.Errorf("%w: crx2 header larger than file", ErrBadArchive)
		}
		return raw[start:], nil
	case 3:
		hdrLen := binary.LittleEndian.Uint32(raw[8:12])
		start := 12 + uint64(hdrLen)
		if start > uint64(len(raw)) {
			return nil, fmt.Errorf("%w: crx3 header larger than file", ErrBadArchive)
		}
		return raw[start:], nil
	default:
		return nil, fmt.Errorf("%w: unknown crx version %d", ErrBadArchive, version)
	}
}

// Build writes the conversion result as an unsigned .xpi at path. Entries
// are written in sorted name order, so equal results produce equal
// archives apart from zip timestamps.
func Build(path string, res *pipeline.Result) error {
	manifestBytes, err := res.Manifest.Marshal()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(res.Files))
	for name := range res.Files {
		if name != manifest.FileName {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	if err := writeEntry(zw, manifest.FileName, manifestBytes); err != nil {
		return err
	}
	for _, name := range names {
		if err := writeEntry(zw, name, res.Files[name]); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive %s: %w", path, err)
	}
	return out.Close()
}

func writeEntry(zw *zip.Writer, name string, body []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}
