// Package wallpaper derives the index partition and entry for a stored object.
//
// Objects live under a device prefix in the bucket, e.g. "pc/sunset.jpg". The
// index keeps one set per device category holding bare filenames.
package wallpaper

import (
	"errors"
	"fmt"
	"strings"
)

type Category string

const (
	PC     Category = "pc"
	Mobile Category = "mobile"

	// DefaultNamespace prefixes every index key: "wallpaper:pc".
	DefaultNamespace = "wallpaper"

	pcPrefix      = string(PC) + pathSeparator
	pathSeparator = "/"
	keySeparator  = ":"

	// placeholder objects some bucket tools leave behind
	placeholderSuffix = ".alist"
)

var (
	ErrInvalidCategory = errors.New("invalid device type")
)

// Categories returns every category in index order.
func Categories() []Category {
	return []Category{PC, Mobile}
}

func (c Category) String() string {
	return string(c)
}

// Prefix is the bucket prefix the category's objects are stored under.
func (c Category) Prefix() string {
	return string(c) + pathSeparator
}

// Classify returns PC for keys under the literal "pc/" prefix and Mobile for
// everything else.
func Classify(objectKey string) Category {
	if strings.HasPrefix(objectKey, pcPrefix) {
		return PC
	}
	return Mobile
}

// Filename returns the final path segment of objectKey. A key without a
// separator is its own filename; a key ending in a separator yields "".
func Filename(objectKey string) string {
	i := strings.LastIndex(objectKey, pathSeparator)
	return objectKey[i+1:]
}

// ParseCategory accepts exactly "pc" or "mobile".
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case PC, Mobile:
		return Category(s), nil
	}
	return "", fmt.Errorf("%w: '%s'", ErrInvalidCategory, s)
}

// IndexKey names the set holding c's filenames, e.g. "wallpaper:mobile".
func IndexKey(namespace string, c Category) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return namespace + keySeparator + string(c)
}

// IsPlaceholder reports whether objectKey is a directory marker or a tool
// placeholder rather than a wallpaper.
func IsPlaceholder(objectKey string) bool {
	return strings.HasSuffix(objectKey, pathSeparator) || strings.HasSuffix(objectKey, placeholderSuffix)
}
