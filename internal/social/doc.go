// Package social turns an arbitrary URL into a normalized ProfileRecord.
//
// A Resolver classifies the URL by host and hands it to one of a closed set
// of strategies:
//
//	instagram.com, instagr.am   Instagram  profile-info API, 6 recent posts
//	tiktok.com, vm.tiktok.com   TikTok     Open Graph tags, platform kept
//	x.com, twitter.com          Twitter    handle from the path, no network
//	anything else               OpenGraph  og:/twitter: meta tags + favicon
//
// Strategies never fail. When an upstream is down, blocks us or returns
// garbage, they return a degraded Outcome whose record carries the
// platform and a best-guess username. Only ParseURL/Resolve report an error,
// ErrInvalidInput, and they do so before any network call.
//
// Successful upstream metadata is cached for a few minutes; media is always
// re-acquired so every record owns its stored objects.
package social
