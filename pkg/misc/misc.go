package misc

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var sizeSuffixes = [...]string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

func FormatFileSize(bytes int64) string {
	size := float64(bytes)

	var suffixIndex int
	for size/1024 > 1 {
		size /= 1024
		suffixIndex++
	}

	res := []rune(fmt.Sprintf("%.2f", size))
	for i := len(res) - 1; i >= 0; i-- {
		if res[i] != '0' {
			if res[i] == '.' {
				i--
			}
			res = res[:i+1]
			break
		}
	}

	return string(res) + " " + sizeSuffixes[suffixIndex]
}

// ThumbnailPath returns the path of a thumbnail for the passed file:
// '<dir>/<normalized name>.thumbnail<ext>'. The extension of the original file
// is dropped.
func ThumbnailPath(originalPath string, ext string) string {
	dir, name := filepath.Split(originalPath)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	name = NormalizeFilename(name)
	if strings.Trim(name, "_-.") == "" {
		name = "image"
	}
	return filepath.Join(dir, name+".thumbnail"+ext)
}

// NormalizeFilename makes a filename safe to use in any file system and shell.
// For example, 'ü' (U+00FC) is transformed into 2 code points: U+0075 U+0308.
// Only ASCII letters and digits are kept, so 'ü' becomes 'u'. All other
// characters are replaced with '_'.
func NormalizeFilename(name string) string {
	name = norm.NFKD.String(name)

	var res []rune
	for _, r := range name {
		switch {
		case unicode.Is(unicode.Mn, r):
			// Skip combining marks.
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.'):
			res = append(res, r)
		default:
			res = append(res, '_')
		}
	}
	return string(res)
}
