package convert

import (
	"path/filepath"
	"strings"
)

// TableName derives the catalog table name for one (source file, channel)
// conversion unit, e.g. ("runs/lab.rlog", "/imu/data") -> "lab_imu_data".
func TableName(sourceFile, topic string) string {
	stem := SanitizeName(fileStem(sourceFile))
	t := SanitizeName(topic)
	switch {
	case stem == "" && t == "":
		return "t"
	case stem == "":
		return t
	case t == "":
		return stem
	}
	return stem + "_" + t
}

// fileStem returns a file name without directories or extensions.
func fileStem(path string) string {
	base := filepath.Base(path)
	for {
		ext := filepath.Ext(base)
		if ext == "" || ext == base {
			return base
		}
		base = strings.TrimSuffix(base, ext)
	}
}

// SanitizeName rewrites an arbitrary topic or file name into a SQL-friendly
// identifier: letters, digits, and underscores, never starting with a digit.
func SanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "t_" + out
	}
	return out
}
