// Package objecturl maps object keys to public URLs and back.
package objecturl

import (
	"net/url"
	"strings"
)

// Layout describes how a blob store exposes objects over HTTP:
//
//	<BaseURL>/<RoutingSegment>/<AccessSegment>/<Bucket>/<key>
//
// Empty segments are omitted. For example a Supabase-style layout
// {BaseURL: "https://x.supabase.co/storage/v1", RoutingSegment: "object",
// AccessSegment: "public", Bucket: "blog-pictures"} produces
// https://x.supabase.co/storage/v1/object/public/blog-pictures/<key>.
type Layout struct {
	BaseURL        string
	RoutingSegment string
	AccessSegment  string
	Bucket         string
}

// PublicURL returns the URL serving key.
func (l Layout) PublicURL(key string) string {
	parts := []string{strings.TrimSuffix(l.BaseURL, "/")}
	for _, seg := range []string{l.RoutingSegment, l.AccessSegment, l.Bucket} {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	for _, seg := range strings.Split(strings.TrimPrefix(key, "/"), "/") {
		parts = append(parts, url.PathEscape(seg))
	}
	return strings.Join(parts, "/")
}

// ResolveKey extracts the object key from a public URL. It reports false when
// the URL is not absolute, points at another host, or does not follow the
// layout.
func (l Layout) ResolveKey(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", false
	}

	path := u.Path
	if l.BaseURL != "" {
		base, err := url.Parse(l.BaseURL)
		if err != nil {
			return "", false
		}
		if !strings.EqualFold(base.Scheme, u.Scheme) || !strings.EqualFold(base.Host, u.Host) {
			return "", false
		}
		basePath := strings.TrimSuffix(base.Path, "/")
		if basePath != "" {
			if path != basePath && !strings.HasPrefix(path, basePath+"/") {
				return "", false
			}
			path = strings.TrimPrefix(path, basePath)
		}
	}

	segments := splitPath(path)
	if l.RoutingSegment != "" {
		i := indexOf(segments, l.RoutingSegment)
		if i < 0 {
			return "", false
		}
		segments = segments[i+1:]
		if l.AccessSegment != "" {
			if len(segments) == 0 || segments[0] != l.AccessSegment {
				return "", false
			}
			segments = segments[1:]
		}
	}
	if l.Bucket != "" {
		if len(segments) == 0 || segments[0] != l.Bucket {
			return "", false
		}
		segments = segments[1:]
	}

	if len(segments) == 0 {
		return "", false
	}
	return strings.Join(segments, "/"), true
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func indexOf(segments []string, want string) int {
	for i, seg := range segments {
		if seg == want {
			return i
		}
	}
	return -1
}
