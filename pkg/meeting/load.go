package meeting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	scerrors "github.com/otherjamesbrown/scribe-cli/pkg/errors"
)

// Supported local transcript formats.
const (
	FormatJSON = "json"
	FormatTXT  = "txt"
	FormatVTT  = "vtt"
)

// FormatForPath picks a transcript format from a file extension.
func FormatForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".txt":
		return FormatTXT, nil
	case ".vtt":
		return FormatVTT, nil
	default:
		return "", fmt.Errorf("%w: unsupported transcript file %q (want .json, .txt or .vtt)", scerrors.ErrValidation, filepath.Base(path))
	}
}

// LoadFile reads a transcript from disk. charset names the file's text
// encoding; empty or "utf-8" reads the bytes as they are.
func LoadFile(path, charset string) (*Result, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()

	r, err := DecodeCharset(f, charset)
	if err != nil {
		return nil, err
	}

	return Parse(r, format)
}

// Parse reads a transcript of the given format.
func Parse(r io.Reader, format string) (*Result, error) {
	var (
		result *Result
		err    error
	)
	switch format {
	case FormatJSON:
		return DecodeJSON(r)
	case FormatTXT:
		result, err = ParseExport(r)
	case FormatVTT:
		result, err = ParseVTT(r)
	default:
		return nil, fmt.Errorf("%w: unknown transcript format %q", scerrors.ErrValidation, format)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s transcript: %w", format, err)
	}
	if err := ValidateSegments(result.Segments); err != nil {
		return nil, err
	}
	return result, nil
}

// DecodeCharset wraps r so that it yields UTF-8.
func DecodeCharset(r io.Reader, charset string) (io.Reader, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))

	// Map common charset names to encodings
	var decoder transform.Transformer
	switch charset {
	case "", "utf-8", "utf8":
		return r, nil
	case "utf-16", "utf16":
		decoder = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	case "iso-8859-1", "latin1", "iso_8859-1":
		decoder = charmap.ISO8859_1.NewDecoder()
	case "iso-8859-15", "latin9":
		decoder = charmap.ISO8859_15.NewDecoder()
	case "windows-1252", "cp1252":
		decoder = charmap.Windows1252.NewDecoder()
	case "windows-1251", "cp1251":
		decoder = charmap.Windows1251.NewDecoder()
	case "gb2312", "gbk", "gb18030":
		decoder = simplifiedchinese.GBK.NewDecoder()
	case "big5":
		decoder = traditionalchinese.Big5.NewDecoder()
	case "shift_jis", "shift-jis", "sjis":
		decoder = japanese.ShiftJIS.NewDecoder()
	case "euc-kr":
		decoder = korean.EUCKR.NewDecoder()
	default:
		return nil, fmt.Errorf("%w: unknown charset %q", scerrors.ErrValidation, charset)
	}

	return transform.NewReader(r, decoder), nil
}
