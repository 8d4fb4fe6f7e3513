package runtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"roomchat/domain"
	"roomchat/errors"
	"strings"
)

// CensoredData carries the result of the loading process including metadata for logging.
type CensoredData struct {
	Words     []string
	Languages []string
}

// CensoredLoader reads blacklisted words, one per line, from every .txt file of a directory.
type CensoredLoader struct {
	fs fs.FS
}

func NewCensoredLoader(f fs.FS) *CensoredLoader {
	return &CensoredLoader{fs: f}
}

// LoadAll parses every file of dir, the file name being the language ("fr.txt" -> "fr").
func (l *CensoredLoader) LoadAll(dir string) (*CensoredData, error) {
	entries, err := fs.ReadDir(l.fs, dir)
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			return nil, fmt.Errorf("%w: %s", errors.ErrOnlyCensoredFiles, entry.Name())
		}
		if path.Ext(entry.Name()) != ".txt" {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fs.ReadFile(l.fs, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		// Scanner handles \n and \r\n alike
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && !strings.HasPrefix(line, "#") {
				uniqueWords[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}
	return &CensoredData{Words: words, Languages: languages}, nil
}

// FileRoomSource reads the bootstrap rooms from a JSON array:
//
//	[{"id":"general","name":"General"},{"id":"random","name":"Random"}]
type FileRoomSource struct {
	path string
}

func NewFileRoomSource(path string) FileRoomSource {
	return FileRoomSource{path: path}
}

func (s FileRoomSource) LoadRooms(_ context.Context) ([]domain.RoomDescriptor, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading rooms file: %w", err)
	}
	return DecodeRooms(data)
}

// DecodeRooms parses a JSON room list, rejecting unknown fields.
func DecodeRooms(data []byte) ([]domain.RoomDescriptor, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	var rooms []domain.RoomDescriptor
	if err := decoder.Decode(&rooms); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidRoom, err)
	}
	if len(rooms) == 0 {
		return nil, errors.ErrEmptyRooms
	}
	return rooms, nil
}
