package vault

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bl4ck0w1/vaultlynx/pkg/models"
)

var (
	ErrInvalidExtension = errors.New("vault file must have a .json extension")
	ErrEmptyContent     = errors.New("vault file is empty")
	ErrNotUTF8          = errors.New("vault file is not valid UTF-8")
	ErrMalformedJSON    = errors.New("vault file is not valid JSON")
	ErrNotObject        = errors.New("vault export must be a JSON object")
	ErrEncryptedExport  = errors.New("encrypted vault exports are not supported, export an unencrypted JSON file instead")
	ErrItemsNotArray    = errors.New(`vault export field "items" must be an array`)
	ErrNoValidItems     = errors.New("vault export contains no valid items")
)

// Exports shortened for sharing end in a "{...}" placeholder instead of the remaining items.
var truncatedTail = regexp.MustCompile(`,\s*\{\.{3}\}\s*\]?$`)

func ParseFile(path string) (*models.VaultExport, error) {
	if err := checkExtension(path); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vault file: %w", err)
	}
	return Parse(raw)
}

// ParseNamed parses raw content that came with a file name, such as an upload.
// An empty name skips the extension check.
func ParseNamed(name string, raw []byte) (*models.VaultExport, error) {
	if name != "" {
		if err := checkExtension(name); err != nil {
			return nil, err
		}
	}
	return Parse(raw)
}

func checkExtension(name string) error {
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		return fmt.Errorf("%w: %s", ErrInvalidExtension, filepath.Base(name))
	}
	return nil
}

func Parse(raw []byte) (*models.VaultExport, error) {
	if !utf8.Valid(raw) {
		return nil, ErrNotUTF8
	}
	text := strings.TrimSpace(strings.TrimPrefix(string(raw), "\ufeff"))
	if text == "" {
		return nil, ErrEmptyContent
	}
	if strings.Contains(text, "{...}") {
		text = Repair(text)
	}
	if text[0] != '{' {
		return nil, ErrNotObject
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	if isTrue(top["encrypted"]) || isTrue(top["passwordProtected"]) {
		return nil, ErrEncryptedExport
	}

	rawItems := bytes.TrimSpace(top["items"])
	if len(rawItems) == 0 || rawItems[0] != '[' {
		return nil, ErrItemsNotArray
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(rawItems, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrItemsNotArray, err)
	}

	export := &models.VaultExport{
		Folders: decodeFolders(top["folders"]),
		Items:   make([]models.VaultRecord, 0, len(entries)),
	}
	valid := 0
	for _, entry := range entries {
		rec, ok := decodeRecord(entry)
		if !ok {
			export.InvalidItems++
			continue
		}
		if rec.Valid() {
			valid++
		}
		export.Items = append(export.Items, rec)
	}
	if valid == 0 {
		return nil, ErrNoValidItems
	}
	return export, nil
}

// Repair replaces a trailing "{...}" placeholder with the end of the items array and
// closes any containers left open by the truncation.
func Repair(text string) string {
	text = truncatedTail.ReplaceAllString(strings.TrimSpace(text), "]")
	return closeOpenContainers(text)
}

func closeOpenContainers(text string) string {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if n := len(stack); n > 0 && stack[n-1] == c {
				stack = stack[:n-1]
			}
		}
	}
	if inString || len(stack) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

func decodeRecord(entry json.RawMessage) (models.VaultRecord, bool) {
	var rec models.VaultRecord
	trimmed := bytes.TrimSpace(entry)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return rec, false
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return rec, false
	}
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return rec, false
	}
	_, rec.HasName = keys["name"]
	return rec, true
}

func decodeFolders(raw json.RawMessage) []models.Folder {
	folders := []models.Folder{}
	if len(raw) == 0 {
		return folders
	}
	if err := json.Unmarshal(raw, &folders); err != nil || folders == nil {
		return []models.Folder{}
	}
	return folders
}

func isTrue(raw json.RawMessage) bool {
	var b bool
	return len(raw) > 0 && json.Unmarshal(raw, &b) == nil && b
}
