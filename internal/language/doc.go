// Package language provides language code normalization and validation.
//
// The --speech-to-text flag accepts ISO 639-1/2 codes, English names or
// BCP 47 tags; everything is resolved to the ISO 639-1 code the
// speech-to-text service expects and checked against the configured
// supported languages.
package language
