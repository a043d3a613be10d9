package batch

import "strings"

// OutputPrefix is where inference results land in the output bucket.
const OutputPrefix = "processed_results/"

// OutputKey derives the result key for one input object:
//
//	multi_dataset_inputs/imdb/file1.txt (prefix multi_dataset_inputs/imdb/)
//	  -> processed_results/file1.json
//
// Keys without an extension get ".json" appended.
func OutputKey(inputKey, inputPrefix string) string {
	rel := strings.TrimPrefix(inputKey, inputPrefix)
	rel = strings.TrimPrefix(rel, "/")
	return replaceExt(OutputPrefix+rel, ".json")
}

// replaceExt swaps the extension of the last path segment. Leading dots of
// the segment are part of the name, so ".env" has no extension.
func replaceExt(key, ext string) string {
	dir, base := "", key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		dir, base = key[:i+1], key[i+1:]
	}

	stem := strings.TrimLeft(base, ".")
	if i := strings.LastIndex(stem, "."); i >= 0 {
		base = base[:len(base)-len(stem)+i]
	}
	return dir + base + ext
}

func isFolderMarker(key string) bool {
	return strings.HasSuffix(key, "/")
}
