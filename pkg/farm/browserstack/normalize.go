package browserstack

import (
	"github.com/tidwall/gjson"

	"github.com/entrhq/bunyip/pkg/farm"
)

// names maps BrowserStack browser ids to display names.
var names = farm.Table{
	"ie":            "Internet Explorer",
	"chrome":        "Google Chrome",
	"firefox":       "Mozilla Firefox",
	"opera":         "Opera",
	"safari":        "Safari",
	"Mobile Safari": "Safari",
}

// osNames maps BrowserStack OS names to display names.
var osNames = farm.Table{
	"win":     "Windows",
	"linux":   "Linux",
	"OS X":    "Mac OS X",
	"ios":     "iOS",
	"android": "Android",
}

// osIDs maps BrowserStack OS names to canonical OS ids.
var osIDs = farm.Table{
	"Windows": "win",
	"Linux":   "linux",
	"OS X":    "mac",
}

// normalize builds an agent from one row of the flat browser list. Device
// rows without a browser use the device as display name and the OS as id.
func normalize(row gjson.Result) farm.Agent {
	browser := row.Get("browser").String()
	version := row.Get("browser_version").String()
	os := row.Get("os").String()
	osVersion := row.Get("os_version").String()
	device := row.Get("device").String()

	name, id := browser, browser
	if browser == "" {
		name, id = device, os
	}
	platform := device
	if platform == "" {
		platform = farm.DesktopPlatform
	}

	params := map[string]string{}
	for key, value := range map[string]string{
		"browser":         browser,
		"browser_version": version,
		"os":              os,
		"os_version":      osVersion,
		"device":          device,
	} {
		if value != "" {
			params[key] = value
		}
	}

	return farm.Agent{
		Name:      names.Lookup(name),
		ID:        id,
		Version:   farm.ParseVersion(version),
		OSID:      osIDs.Lookup(os),
		OSName:    osNames.Lookup(os),
		OSVersion: osVersion,
		Platform:  platform,
		Farm:      params,
	}
}
