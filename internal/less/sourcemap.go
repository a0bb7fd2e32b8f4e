package less

import (
	"encoding/base64"
	"encoding/json"
	"path"
	"strings"
)

type sourceMap struct {
	Version        int      `json:"version"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// SourceMap returns a version 3 source map from the compiled CSS back to
// the LESS files. Source paths are joined onto sourceRoot.
func (r *Result) SourceMap(sourceRoot string) ([]byte, error) {
	index := make(map[string]int, len(r.Sources))
	sm := sourceMap{
		Version:        3,
		Sources:        make([]string, len(r.Sources)),
		SourcesContent: r.contents,
		Names:          []string{},
	}
	for i, name := range r.Sources {
		index[name] = i
		sm.Sources[i] = path.Join(sourceRoot, name)
	}
	if sm.SourcesContent == nil {
		sm.SourcesContent = []string{}
	}

	var b strings.Builder
	// the writer records at most one mapping per generated line
	var prevSrc, prevLine, prevCol int
	genLine := 0
	for _, m := range r.mappings {
		src, ok := index[m.at.file]
		if !ok {
			continue
		}
		for ; genLine < m.genLine; genLine++ {
			b.WriteByte(';')
		}
		line := m.at.line - 1
		writeVLQ(&b, m.genCol)
		writeVLQ(&b, src-prevSrc)
		writeVLQ(&b, line-prevLine)
		writeVLQ(&b, m.at.col-prevCol)
		prevSrc, prevLine, prevCol = src, line, m.at.col
	}
	sm.Mappings = b.String()
	return json.Marshal(sm)
}

// InlineSourceMapComment returns a CSS comment carrying the map as a data
// URL, which downstream tools chain onto their own maps.
func InlineSourceMapComment(sourceMap []byte) string {
	return "/*# sourceMappingURL=data:application/json;base64," + base64.StdEncoding.EncodeToString(sourceMap) + " */"
}

const vlqChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func writeVLQ(b *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = -v<<1 | 1
	}
	for {
		digit := u & 31
		u >>= 5
		if u > 0 {
			digit |= 32
		}
		b.WriteByte(vlqChars[digit])
		if u == 0 {
			return
		}
	}
}
