package semver

import (
	"fmt"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const resolverLogPrefix = "semver:resolver"

// ParseConstraint parses an operator constraint. A bare major ("120") means ">=120".
func ParseConstraint(constraint string) (*masterminds.Constraints, error) {
	c := strings.TrimSpace(constraint)
	if IsMajorOnly(c) {
		c = ">=" + c
	}
	parsed, err := masterminds.NewConstraint(c)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid constraint %q: %w", resolverLogPrefix, constraint, err)
	}
	return parsed, nil
}

// CheckVersion reports an error unless the browser version satisfies constraint. An empty
// constraint accepts every version.
func CheckVersion(version, constraint string) error {
	if strings.TrimSpace(constraint) == "" {
		return nil
	}
	c, err := ParseConstraint(constraint)
	if err != nil {
		return err
	}
	v, err := ParseBrowserVersion(version)
	if err != nil {
		return err
	}
	if ok, reasons := c.Validate(v); !ok {
		msgs := make([]string, 0, len(reasons))
		for _, r := range reasons {
			msgs = append(msgs, r.Error())
		}
		return fmt.Errorf("browser version %s does not satisfy %s: %s", version, constraint, strings.Join(msgs, "; "))
	}
	return nil
}
