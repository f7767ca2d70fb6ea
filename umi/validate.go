package umi

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

var alphabetWithNMap = map[byte]bool{
	'A': true,
	'C': true,
	'G': true,
	'T': true,
	'N': true,
}

// Validate returns an error if umi is empty or contains a base other than
// ACGTN.
func Validate(umi string) error {
	if len(umi) == 0 {
		return errors.E(errors.Invalid, "empty umi")
	}
	for i := 0; i < len(umi); i++ {
		if !alphabetWithNMap[umi[i]] {
			return errors.E(errors.Invalid, fmt.Sprintf("invalid base %c in umi %v", umi[i], umi))
		}
	}
	return nil
}
