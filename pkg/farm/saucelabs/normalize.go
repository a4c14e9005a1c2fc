package saucelabs

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/entrhq/bunyip/pkg/farm"
)

// ids maps SauceLabs api names to canonical ids.
var ids = farm.Table{
	"internet explorer": "ie",
}

// osIDs maps SauceLabs OS names to canonical OS ids.
var osIDs = farm.Table{
	"Windows": "win",
	"Linux":   "linux",
	"Mac":     "mac",
}

var osVersionStart = regexp.MustCompile(`\s+\d`)

// splitOS splits "Windows 2012" into its name and version at the first
// whitespace followed by a digit. "Mac 10.8" gives Mac/10.8, "Linux"
// gives Linux/"".
func splitOS(os string) (name, version string) {
	os = strings.TrimSpace(os)
	loc := osVersionStart.FindStringIndex(os)
	if loc == nil {
		return os, ""
	}
	return os[:loc[0]], strings.TrimSpace(os[loc[0]:])
}

func normalize(row gjson.Result) farm.Agent {
	apiName := row.Get("api_name").String()
	version := row.Get("short_version").String()
	os := row.Get("os").String()
	osName, osVersion := splitOS(os)

	platform := row.Get("device").String()
	if platform == "" {
		platform = farm.DesktopPlatform
	}

	// Device rows may carry no long_name.
	name := row.Get("long_name").String()
	if name == "" {
		name = row.Get("device").String()
	}
	if name == "" {
		name = apiName
	}

	return farm.Agent{
		Name:      name,
		ID:        ids.Lookup(apiName),
		Version:   farm.ParseVersion(version),
		OSID:      osIDs.Lookup(osName),
		OSName:    osName,
		OSVersion: osVersion,
		Platform:  platform,
		Farm: map[string]string{
			"browserName": apiName,
			"version":     version,
			"platform":    os,
		},
	}
}
