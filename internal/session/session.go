// Copyright 2019 Featix Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session manages the working directory of one index build.  A build
// either commits, which writes a terminal version marker after all artifacts
// are flushed, or is discarded; artifacts without the marker must not be
// treated as valid by readers.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// versionMarker is the name of the file recording the index format version.
// It is written once, at commit time, after every other artifact.
const versionMarker = "version"

// ErrNotCommitted is returned by Version for a directory whose build never
// committed.
var ErrNotCommitted = errors.New("build was not committed")

// Session owns the exclusive working directory of one build.
type Session struct {
	dir       string
	committed bool
}

// New creates a fresh working directory under parent, named with the given
// prefix and a random suffix so retries never collide with partial output.
func New(parent, prefix string) (*Session, error) {
	dir := filepath.Join(parent, prefix+"-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating working directory: %v", err)
	}
	return &Session{dir: dir}, nil
}

// Dir returns the working directory path.
func (s *Session) Dir() string {
	return s.dir
}

// Path returns the path of the named artifact inside the working directory.
func (s *Session) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Create creates the named artifact file.
func (s *Session) Create(name string) (*os.File, error) {
	f, err := os.Create(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("creating artifact %s: %v", name, err)
	}
	return f, nil
}

// Mkdir creates the named artifact directory and returns its path.
func (s *Session) Mkdir(name string) (string, error) {
	path := s.Path(name)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("creating artifact directory %s: %v", name, err)
	}
	return path, nil
}

// Commit marks the build complete by writing the version marker.  The marker
// is written to a temporary file and renamed so a crash mid-write cannot
// leave a marker that claims a broken build is complete.
func (s *Session) Commit(version string) error {
	if s.committed {
		return errors.New("build already committed")
	}
	tmp := s.Path(versionMarker + ".tmp")
	if err := os.WriteFile(tmp, []byte(version+"\n"), 0644); err != nil {
		return fmt.Errorf("writing version marker: %v", err)
	}
	if err := os.Rename(tmp, s.Path(versionMarker)); err != nil {
		return fmt.Errorf("publishing version marker: %v", err)
	}
	s.committed = true
	return nil
}

// Discard removes the working directory and everything in it.
func (s *Session) Discard() error {
	return os.RemoveAll(s.dir)
}

// Version returns the format version a committed build directory was written
// with, or ErrNotCommitted if the marker is absent.
func Version(dir string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(dir, versionMarker))
	if os.IsNotExist(err) {
		return "", ErrNotCommitted
	}
	if err != nil {
		return "", fmt.Errorf("reading version marker: %v", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Check verifies that dir holds a committed build of the wanted version.
// Readers must refuse artifacts whose version they do not recognize.
func Check(dir, want string) error {
	got, err := Version(dir)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("unsupported index version %q (want %q)", got, want)
	}
	return nil
}
