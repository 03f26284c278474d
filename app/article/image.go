package article

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// RenderingWidths are the thumbnail widths requested from image servers, ascending.
var RenderingWidths = []int{60, 120, 240, 320, 640, 800, 1024, 1280, 1920, 2560}

var sizePrefixPattern = regexp.MustCompile(`/(?:page\d+-)?(\d+)px-([^/]+)$`)

// ImageURLForWidth returns the article image scaled for the requested width,
// or nil when the article has no image source.
func (a *Article) ImageURLForWidth(width int) *url.URL {
	if a.ImageSource == nil {
		return nil
	}
	return ImageURLForTargetWidth(width, *a.ImageSource, a.OriginalImageWidth)
}

// ImageURLForTargetWidth computes the scaled image URL from raw values so
// callers do not need a stored article. The encoded width never exceeds
// originalWidth when originalWidth is known.
func ImageURLForTargetWidth(width int, imageSource string, originalWidth int) *url.URL {
	if imageSource == "" || width <= 0 {
		return nil
	}

	target := width
	if originalWidth > 0 && originalWidth < target {
		target = originalWidth
	}
	rendered := renderingWidth(target)

	u, err := url.Parse(imageSource)
	if err != nil {
		return nil
	}
	u.Path = withSizePrefix(u.Path, rendered)
	u.RawPath = ""
	return u
}

// renderingWidth picks the largest supported width not above target.
func renderingWidth(target int) int {
	chosen := 0
	for _, w := range RenderingWidths {
		if w > target {
			break
		}
		chosen = w
	}
	if chosen == 0 {
		return target
	}
	return chosen
}

// SizePrefix parses the "<N>px-" width out of a thumbnail URL. It reports
// false when the URL is not a sized thumbnail.
func SizePrefix(imageSource string) (int, bool) {
	u, err := url.Parse(imageSource)
	if err != nil {
		return 0, false
	}
	m := sizePrefixPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return 0, false
	}
	width, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return width, true
}

func withSizePrefix(p string, width int) string {
	if m := sizePrefixPattern.FindStringSubmatchIndex(p); m != nil {
		return p[:m[2]] + strconv.Itoa(width) + p[m[3]:]
	}

	dir, file := path.Split(p)
	if file == "" {
		return p
	}
	dir = thumbDir(dir)

	thumbName := strconv.Itoa(width) + "px-" + file
	switch strings.ToLower(path.Ext(file)) {
	case ".svg":
		thumbName += ".png"
	case ".pdf", ".tif", ".tiff":
		thumbName = "page1-" + thumbName + ".jpg"
	}
	return dir + file + "/" + thumbName
}

// thumbDir inserts the "thumb" segment after the project segment of an
// upload path: /wikipedia/commons/a/ab/ -> /wikipedia/commons/thumb/a/ab/.
func thumbDir(dir string) string {
	segments := strings.Split(strings.Trim(dir, "/"), "/")
	if len(segments) < 2 || segments[0] != "wikipedia" {
		return dir
	}
	for _, s := range segments {
		if s == "thumb" {
			return dir
		}
	}
	out := append([]string{segments[0], segments[1], "thumb"}, segments[2:]...)
	return "/" + strings.Join(out, "/") + "/"
}
