// Package milestone detects round-number threshold crossings in score
// histories and attributes repository stars across programming languages.
package milestone

import (
	"fmt"
	"strings"
)

// minThreshold is the smallest score worth a milestone.
const minThreshold = 1000

// Thresholds returns the milestone buckets at or below max, in ascending
// order. Buckets follow the leading-digit series 1000, 2000, 5000, 10000,
// 20000, 50000, ... so a score of 9800 falls in bucket 5000, not 9000.
func Thresholds(max int64) []int64 {
	var out []int64
	for base := int64(minThreshold); base <= max; base *= 10 {
		for _, digit := range []int64{1, 2, 5} {
			if t := base * digit; t <= max {
				out = append(out, t)
			}
		}
	}
	return out
}

// Crossed returns the thresholds t with prev < t <= cur.
func Crossed(prev, cur int64) []int64 {
	if cur < minThreshold || cur <= prev {
		return nil
	}
	var out []int64
	for _, t := range Thresholds(cur) {
		if t > prev {
			out = append(out, t)
		}
	}
	return out
}

// UniqueID is the idempotency key for a plain score milestone.
func UniqueID(bucket int64) string {
	return fmt.Sprintf("milestone-%d", bucket)
}

// LanguageUniqueID is the idempotency key for a per-language star
// milestone.
func LanguageUniqueID(language string, bucket int64) string {
	return fmt.Sprintf("lang-%s-%d", strings.ToLower(language), bucket)
}
