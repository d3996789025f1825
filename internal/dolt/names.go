package dolt

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	invalidBranchChars = regexp.MustCompile(`[\x00-\x1f\x7f*:?\[\\^~ ]`)
	commitHashLike     = regexp.MustCompile(`^[0-9a-v]{32}$`)
)

// ValidateBranchName checks name against dolt's branch naming rules. They are
// close to git's but dolt also refuses names it could mistake for a commit hash.
func ValidateBranchName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("branch name is empty")
	case strings.EqualFold(name, "HEAD"):
		return fmt.Errorf("%q is reserved", name)
	case strings.HasPrefix(name, "-"):
		return fmt.Errorf("%q starts with '-'", name)
	case strings.Contains(name, ".."), strings.Contains(name, "@{"), strings.Contains(name, "//"):
		return fmt.Errorf("%q contains a forbidden sequence", name)
	case invalidBranchChars.MatchString(name):
		return fmt.Errorf("%q contains a forbidden character", name)
	case strings.HasSuffix(name, "/"), strings.HasSuffix(name, "."), strings.HasSuffix(name, ".lock"):
		return fmt.Errorf("%q has a forbidden suffix", name)
	case strings.HasPrefix(name, "/"):
		return fmt.Errorf("%q starts with '/'", name)
	case commitHashLike.MatchString(name):
		return fmt.Errorf("%q looks like a commit hash", name)
	}
	return nil
}
