// Copyright 2025 BINARY Members
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package snapshot

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/B1NARY-GR0UP/logmap/pkg/logger"
	"github.com/B1NARY-GR0UP/logmap/pkg/utils"
)

const (
	_filePrefix = "snapshot_"
	_extBinary  = ".bmap"
	_extText    = ".tmap"
	_extArchive = ".s2"
)

// entryPair locates the files of one snapshot ordinal. Either path may be
// empty when only one form exists.
type entryPair struct {
	ordinal uint64
	bmap    string
	tmap    string
}

func snapshotPath(dir string, ordinal uint64, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d%s", _filePrefix, ordinal, ext))
}

// latestEntry scans dir for the maximum snapshot ordinal with at least one
// of the two extensions present. Archived files do not participate.
func latestEntry(dir string) (entryPair, bool, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return entryPair{}, false, fmt.Errorf("read snapshot dir: %w", err)
	}

	var pair entryPair
	var found bool
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		rest, ok := strings.CutPrefix(name, _filePrefix)
		if !ok {
			continue
		}
		var ext string
		switch {
		case strings.HasSuffix(rest, _extBinary):
			ext = _extBinary
		case strings.HasSuffix(rest, _extText):
			ext = _extText
		default:
			continue
		}
		ordinal, err := strconv.ParseUint(strings.TrimSuffix(rest, ext), 10, 64)
		if err != nil {
			continue
		}

		if !found || ordinal > pair.ordinal {
			found = true
			pair = entryPair{ordinal: ordinal}
		}
		if ordinal == pair.ordinal {
			path := filepath.Join(dir, name)
			if ext == _extBinary {
				pair.bmap = path
			} else {
				pair.tmap = path
			}
		}
	}
	return pair, found, nil
}

// writeFileAtomic stages data in a temp file, syncs, and renames it into
// place so a torn write is never selectable as a snapshot.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// archiveOlder compresses every raw snapshot file labeled strictly below
// keep and removes the original. The compressed copies keep history cheap
// without ever touching the latest pair. Failures are logged, not fatal.
func archiveOlder(dir string, keep uint64, log logger.Logger) {
	files, err := os.ReadDir(dir)
	if err != nil {
		log.Errorf("archive snapshots: %v", err)
		return
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		rest, ok := strings.CutPrefix(name, _filePrefix)
		if !ok {
			continue
		}
		ext := filepath.Ext(rest)
		if ext != _extBinary && ext != _extText {
			continue
		}
		ordinal, err := strconv.ParseUint(strings.TrimSuffix(rest, ext), 10, 64)
		if err != nil || ordinal >= keep {
			continue
		}

		path := filepath.Join(dir, name)
		if err := archiveFile(path); err != nil {
			log.Errorf("archive snapshot %s: %v", name, err)
			continue
		}
		log.Debugf("archived snapshot %s", name)
	}
}

func archiveFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var compressed bytes.Buffer
	if err := utils.Compress(bytes.NewReader(raw), &compressed); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path+_extArchive, compressed.Bytes(), info.Mode()); err != nil {
		return err
	}
	return os.Remove(path)
}
