// Package scoring parses a release title into quality facets and scores
// candidates for the selector. It is pure: no I/O, no mutation of input.
package scoring

import (
	"regexp"
	"strings"
)

// Facets are the structured quality attributes parsed from a release title.
type Facets struct {
	Resolution   string
	Audio        string
	HDR          string
	VideoCodec   string
	Source       string
	ReleaseGroup string
}

var (
	resolutionOrder = []string{"2160p", "1080p", "720p", "480p"}
	resolutionPatterns = map[string]*regexp.Regexp{
		"2160p": regexp.MustCompile(`(?i)(2160p|4k|uhd)`),
		"1080p": regexp.MustCompile(`(?i)1080p`),
		"720p":  regexp.MustCompile(`(?i)720p`),
		"480p":  regexp.MustCompile(`(?i)(480p|\bsd\b)`),
	}

	sourceOrder = []string{"Remux", "BluRay", "WEBRip", "WEB-DL", "HDTV", "DVDRip", "SDTV", "CAM"}
	sourcePatterns = map[string]*regexp.Regexp{
		"Remux":  regexp.MustCompile(`(?i)remux`),
		"BluRay": regexp.MustCompile(`(?i)(blu-?ray|bdrip|brrip|bdremux)`),
		"WEBRip": regexp.MustCompile(`(?i)web-?rip`),
		"WEB-DL": regexp.MustCompile(`(?i)(web-?dl|webdl|\bweb\b)`),
		"HDTV":   regexp.MustCompile(`(?i)hdtv`),
		"DVDRip": regexp.MustCompile(`(?i)(dvdrip|dvd-?r)`),
		"SDTV":   regexp.MustCompile(`(?i)(sdtv|pdtv|dsr)`),
		"CAM":    regexp.MustCompile(`(?i)(\bcam\b|hdcam|\bts\b|telesync)`),
	}

	codecOrder = []string{"x265", "AV1", "VP9", "x264", "XviD", "DivX", "MPEG2"}
	codecPatterns = map[string]*regexp.Regexp{
		"x265":  regexp.MustCompile(`(?i)(x265|h\.?265|hevc)`),
		"x264":  regexp.MustCompile(`(?i)(x264|h\.?264|avc)`),
		"AV1":   regexp.MustCompile(`(?i)av1`),
		"VP9":   regexp.MustCompile(`(?i)vp9`),
		"XviD":  regexp.MustCompile(`(?i)xvid`),
		"DivX":  regexp.MustCompile(`(?i)divx`),
		"MPEG2": regexp.MustCompile(`(?i)mpeg-?2`),
	}

	hdrOrder = []string{"DV", "HDR10+", "HDR10", "HDR", "HLG"}
	hdrPatterns = map[string]*regexp.Regexp{
		"DV":     regexp.MustCompile(`(?i)(dolby[.\s]?vision|dovi|\.dv\.)`),
		"HDR10+": regexp.MustCompile(`(?i)hdr10(\+|plus)`),
		"HDR10":  regexp.MustCompile(`(?i)hdr10(?:[^+p]|$)`),
		"HDR":    regexp.MustCompile(`(?i)[.\s-]hdr[.\s-]`),
		"HLG":    regexp.MustCompile(`(?i)hlg`),
	}

	// Audio is scored by the single highest-ranked codec present, matching
	// lossless-dominates ordering (TrueHD/DTS-HD MA > DTS-HD/DTS > DDP/DD > others).
	audioOrder = []string{"TrueHD", "DTS-HD MA", "DTS-HD", "DTS", "DDP", "DD", "FLAC", "AAC", "Opus", "MP3"}
	audioPatterns = map[string]*regexp.Regexp{
		"TrueHD":    regexp.MustCompile(`(?i)true[.\-]?hd`),
		"DTS-HD MA": regexp.MustCompile(`(?i)dts[.\-]?hd[.\-]?ma`),
		"DTS-HD":    regexp.MustCompile(`(?i)dts[.\-]?hd`),
		"DTS":       regexp.MustCompile(`(?i)[.\s\-_]dts[.\s\-_]`),
		"DDP":       regexp.MustCompile(`(?i)([.\s\-_]ddp[.\s\-_\d]|dd\+|e[.\-]?ac[.\-]?3)`),
		"DD":        regexp.MustCompile(`(?i)([.\s\-_]dd[.\s\-_\d]|[.\s\-_]ac[.\-]?3[.\s\-_])`),
		"FLAC":      regexp.MustCompile(`(?i)[.\s\-_]flac[.\s\-_]`),
		"AAC":       regexp.MustCompile(`(?i)[.\s\-_]aac[.\s\-_\d]`),
		"Opus":      regexp.MustCompile(`(?i)[.\s\-_]opus[.\s\-_]`),
		"MP3":       regexp.MustCompile(`(?i)[.\s\-_]mp3[.\s\-_]`),
	}

	releaseGroupPattern        = regexp.MustCompile(`-([A-Za-z0-9]+)(?:\.[a-z0-9]{2,4})?$`)
	releaseGroupFalsePositives = map[string]bool{
		"x264": true, "x265": true, "hevc": true, "avc": true,
		"h264": true, "h265": true, "xvid": true, "divx": true,
		"av1": true, "vp9": true, "mkv": true, "mp4": true, "avi": true,
	}
)

// ParseFacets extracts quality facets from a release title. Matching is
// case-insensitive; within each family the first pattern in the fixed order
// wins, so a title naming multiple tokens of one family is resolved
// deterministically rather than by incidental regex-map iteration order.
func ParseFacets(title string) Facets {
	var f Facets

	for _, r := range resolutionOrder {
		if resolutionPatterns[r].MatchString(title) {
			f.Resolution = r
			break
		}
	}
	for _, s := range sourceOrder {
		if sourcePatterns[s].MatchString(title) {
			f.Source = s
			break
		}
	}
	for _, c := range codecOrder {
		if codecPatterns[c].MatchString(title) {
			f.VideoCodec = c
			break
		}
	}
	for _, h := range hdrOrder {
		if hdrPatterns[h].MatchString(title) {
			f.HDR = h
			break
		}
	}
	for _, a := range audioOrder {
		if audioPatterns[a].MatchString(title) {
			f.Audio = a
			break
		}
	}

	if match := releaseGroupPattern.FindStringSubmatch(title); match != nil {
		if !releaseGroupFalsePositives[strings.ToLower(match[1])] {
			f.ReleaseGroup = match[1]
		}
	}

	return f
}
