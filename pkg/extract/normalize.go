package extract

import "github.com/PuerkitoBio/purell"

// Normalize canonicalizes a URL for deduplication: fragments and trailing
// slashes are stripped, scheme/host lowercased, default ports and dot
// segments removed. Normalization is idempotent.
func Normalize(url string) (string, error) {
	flags := purell.FlagLowercaseScheme |
		purell.FlagLowercaseHost |
		purell.FlagRemoveDefaultPort |
		purell.FlagRemoveFragment |
		purell.FlagRemoveTrailingSlash |
		purell.FlagDecodeUnnecessaryEscapes |
		purell.FlagSortQuery |
		purell.FlagRemoveDuplicateSlashes |
		purell.FlagRemoveDotSegments

	return purell.NormalizeURLString(url, flags)
}
