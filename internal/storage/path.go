package storage

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultSnapshotNamespace = "schema"
	LatestSnapshotName       = "latest.parquet"
)

var (
	pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)
	snapshotNamePattern  = regexp.MustCompile(`^([0-9]+)\.parquet$`)
)

// BuildSnapshotPath returns namespace/<unix seconds>.parquet for a snapshot taken at takenAt.
func BuildSnapshotPath(namespace string, takenAt time.Time) (string, error) {
	namespace, err := snapshotNamespace(namespace)
	if err != nil {
		return "", err
	}
	return path.Join(namespace, fmt.Sprintf("%d.parquet", takenAt.UTC().Unix())), nil
}

func BuildLatestSnapshotPath(namespace string) (string, error) {
	namespace, err := snapshotNamespace(namespace)
	if err != nil {
		return "", err
	}
	return path.Join(namespace, LatestSnapshotName), nil
}

// ParseSnapshotPath extracts the snapshot time from a key built by
// BuildSnapshotPath. The latest pointer and foreign keys do not parse.
func ParseSnapshotPath(key string) (time.Time, bool) {
	match := snapshotNamePattern.FindStringSubmatch(path.Base(key))
	if match == nil {
		return time.Time{}, false
	}
	seconds, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(seconds, 0).UTC(), true
}

func snapshotNamespace(namespace string) (string, error) {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return DefaultSnapshotNamespace, nil
	}
	if err := validatePathComponent(namespace, "snapshot namespace"); err != nil {
		return "", err
	}
	return namespace, nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
