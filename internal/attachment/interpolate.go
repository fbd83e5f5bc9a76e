package attachment

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// DefaultPathTemplate lays files out per entity, attachment and variant.
const DefaultPathTemplate = ":class/:id_partition/:attachment/:variant/:filename"

// PathParams feeds Interpolate.
type PathParams struct {
	Class       string
	ID          string
	Attachment  string
	Variant     string
	FileName    string
	Fingerprint string
}

// Interpolate replaces the tokens :class, :id, :id_partition, :attachment,
// :variant, :filename, :basename, :extension and :fingerprint in tmpl.
func Interpolate(tmpl string, p PathParams) string {
	ext := path.Ext(p.FileName)
	base := strings.TrimSuffix(p.FileName, ext)

	// longer tokens first so :id does not eat :id_partition
	r := strings.NewReplacer(
		":id_partition", IDPartition(p.ID),
		":attachment", segment(p.Attachment),
		":fingerprint", p.Fingerprint,
		":extension", strings.TrimPrefix(ext, "."),
		":filename", segment(p.FileName),
		":basename", segment(base),
		":variant", segment(p.Variant),
		":class", segment(p.Class),
		":id", segment(p.ID),
	)
	return r.Replace(tmpl)
}

// IDPartition spreads ids over nested directories: numeric ids are zero
// padded to nine digits and split 3/3/3, other ids use their first nine
// alphanumeric characters.
func IDPartition(id string) string {
	if id == "" {
		return ""
	}

	var digits string
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		digits = fmt.Sprintf("%09d", n)
	} else {
		digits = strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
				return r
			}
			return -1
		}, id)
		if len(digits) > 9 {
			digits = digits[:9]
		}
	}

	groups := make([]string, 0, len(digits)/3+1)
	for len(digits) >= 3 {
		groups = append(groups, digits[:3])
		digits = digits[3:]
	}
	if digits != "" {
		groups = append(groups, digits)
	}
	return strings.Join(groups, "/")
}

func segment(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(s)
}
