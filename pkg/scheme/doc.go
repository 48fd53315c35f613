// Package scheme compiles proxy URL templates into anchored matchers.
//
// A template is an ordinary URL with positional placeholders:
//
//	%h  canonical host (multi-host proxies only)
//	%p  full path, without the leading slash
//	%d  directory part of the path
//	%f  file part of the path
//	%a  arbitrary span
//
// A literal percent sign is written as %%, so "%%h" is the literal text "%h".
// Any other percent sequence is rejected, which keeps percent-encoded bytes from
// being mistaken for placeholders.
//
// # Compiling
//
//	m, err := scheme.Compile("https://%h.proxy.example.edu/%p", true)
//	if err != nil {
//		var mte *scheme.MalformedTemplateError
//		errors.As(err, &mte) // template rejected
//	}
//	groups, ok := m.Match("https://journal.example.org.proxy.example.edu/a/b")
//	// groups[scheme.Host] == "journal.example.org", groups[scheme.Path] == "a/b"
//
// Compile is pure: the same template and flag always yield an equivalent
// Matcher, so compiled state never needs to be persisted.
package scheme
