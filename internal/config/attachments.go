package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/paperclip/internal/attachment"
	"github.com/dmitrijs2005/paperclip/internal/common"
	"gopkg.in/yaml.v3"
)

type attachmentsFile struct {
	Attachments []attachment.Definition `yaml:"attachments"`
}

// LoadAttachmentDefinitions reads attachment definitions from a YAML file.
// A missing file yields no definitions.
func LoadAttachmentDefinitions(path string) ([]attachment.Definition, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read attachments %s: %w", path, err)
	}
	return ParseAttachmentDefinitions(data)
}

// ParseAttachmentDefinitions decodes the `attachments:` list. Unknown keys,
// step parameters included, are rejected and every variant plan is
// validated.
func ParseAttachmentDefinitions(data []byte) ([]attachment.Definition, error) {
	var f attachmentsFile

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: attachments: %v", common.ErrConfiguration, err)
	}

	for i, d := range f.Attachments {
		if d.Name == "" {
			return nil, fmt.Errorf("%w: attachments[%d] has no name", common.ErrConfiguration, i)
		}
		if _, err := d.Options(); err != nil {
			return nil, err
		}
	}
	return f.Attachments, nil
}
