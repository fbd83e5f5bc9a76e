// Package common contains shared constants and sentinel errors used across
// paperclip components.
package common

// NullAttachment is the value that, when assigned to an attachment, marks
// its stored files for deletion on the next save.
const NullAttachment = "--paperclip-null--"

// OriginalVariant is the variant name under which the unmodified upload is stored.
const OriginalVariant = "original"
