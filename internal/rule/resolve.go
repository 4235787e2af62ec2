package rule

import (
	"regexp"
	"strings"
)

var (
	// external/cert/id/exp33-c, external/misra/id/rule-10-3, external/autosar/id/a7-1-5
	externalTagRegex = regexp.MustCompile(`(?i)^external/(cert|misra|autosar)/id/([a-z0-9.-]+)$`)

	clangTidyCertRegex = regexp.MustCompile(`(?i)^cert-([a-z]{3}\d{2})-(c|cpp)$`)
	cppcheckMisraC     = regexp.MustCompile(`(?i)^misra-c20(?:12|23)-(dir-)?(\d+)\.(\d+)$`)
	cppcheckMisraCPP   = regexp.MustCompile(`(?i)^misra-cpp2008-(\d+)-(\d+)-(\d+)$`)

	bareCertRegex     = regexp.MustCompile(`(?i)^[a-z]{3}\d{2}-(c|cpp)$`)
	bareAutosarRegex  = regexp.MustCompile(`(?i)^[am]\d+-\d+-\d+$`)
	bareMisraCRegex   = regexp.MustCompile(`(?i)^(rule|dir)[ -]?(\d+)[.-](\d+)$`)
	bareMisraCPPRegex = regexp.MustCompile(`(?i)^rule[ -]?(\d+)-(\d+)-(\d+)$`)
)

// Resolve maps an analyzer check identifier, and optionally its tags, to a
// rule ID. Explicit catalog mappings win; then tags of the form
// external/<family>/id/<code>; then the check id itself in any of the
// recognized spellings. hint is the standard of the pack that produced the
// diagnostic and only disambiguates CERT C rules reported by a CERT C++ pack.
func (c *Catalog) Resolve(check string, tags []string, hint Standard) (ID, bool) {
	check = strings.TrimSpace(check)
	if c != nil {
		if id, ok := c.byCheck[check]; ok {
			return id, true
		}
	}

	for _, tag := range tags {
		m := externalTagRegex.FindStringSubmatch(strings.TrimSpace(tag))
		if m == nil {
			continue
		}
		if id, ok := resolveFamilyCode(strings.ToLower(m[1]), m[2], hint); ok {
			return id, true
		}
	}

	return resolveCheck(check, hint)
}

func resolveCheck(check string, hint Standard) (ID, bool) {
	if check == "" {
		return ID{}, false
	}

	if strings.Contains(check, "/") {
		if id, err := ParseID(check); err == nil {
			return id, true
		}
	}

	if m := clangTidyCertRegex.FindStringSubmatch(check); m != nil {
		return certID(m[1]+"-"+m[2], hint)
	}
	if m := cppcheckMisraC.FindStringSubmatch(check); m != nil {
		kind := "Rule"
		if m[1] != "" {
			kind = "Dir"
		}
		return checkedID(MisraC, kind+" "+m[2]+"."+m[3])
	}
	if m := cppcheckMisraCPP.FindStringSubmatch(check); m != nil {
		return checkedID(MisraCPP, "Rule "+m[1]+"-"+m[2]+"-"+m[3])
	}

	switch {
	case bareCertRegex.MatchString(check):
		return certID(check, hint)
	case bareAutosarRegex.MatchString(check):
		return checkedID(Autosar, strings.ToUpper(check))
	}
	if m := bareMisraCPPRegex.FindStringSubmatch(check); m != nil {
		return checkedID(MisraCPP, "Rule "+m[1]+"-"+m[2]+"-"+m[3])
	}
	if m := bareMisraCRegex.FindStringSubmatch(check); m != nil {
		return checkedID(MisraC, titleKind(m[1])+" "+m[2]+"."+m[3])
	}
	return ID{}, false
}

// resolveFamilyCode handles the lower-case codes used in SARIF tags.
func resolveFamilyCode(family, code string, hint Standard) (ID, bool) {
	switch family {
	case "cert":
		return certID(code, hint)
	case "autosar":
		return checkedID(Autosar, strings.ToUpper(code))
	case "misra":
		parts := strings.Split(strings.ToLower(code), "-")
		if len(parts) < 3 {
			return ID{}, false
		}
		kind, nums := parts[0], parts[1:]
		switch {
		case kind == "dir" && len(nums) == 2:
			return checkedID(MisraC, "Dir "+nums[0]+"."+nums[1])
		case kind == "rule" && len(nums) == 2:
			return checkedID(MisraC, "Rule "+nums[0]+"."+nums[1])
		case kind == "rule" && len(nums) == 3:
			return checkedID(MisraCPP, "Rule "+strings.Join(nums, "-"))
		}
	}
	return ID{}, false
}

// certID picks CERT-C or CERT-CPP. CPP-suffixed codes always belong to
// CERT C++; C-suffixed codes belong to CERT C unless a CERT C++ pack
// reported them.
func certID(code string, hint Standard) (ID, bool) {
	code = strings.ToUpper(code)
	std := CertC
	if strings.HasSuffix(code, "-CPP") || hint == CertCPP {
		std = CertCPP
	}
	return checkedID(std, code)
}

func checkedID(std Standard, code string) (ID, bool) {
	id, err := NewID(std, code)
	if err != nil {
		return ID{}, false
	}
	return id, true
}

func titleKind(s string) string {
	if strings.EqualFold(s, "dir") {
		return "Dir"
	}
	return "Rule"
}
