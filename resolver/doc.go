// Package resolver turns a pool of echo servers into one external address.
//
// Resolve samples servers uniformly at random (with replacement) and stops at
// the first answer that is a valid address and not blacklisted. The attempt
// budget is bounded; when it runs out the last answer is returned as is,
// alongside ErrAttemptsExhausted, so the caller can tell an unusable address
// from a good one without losing what was observed.
//
// Survey is the consensus test: every server in the pool is asked once and
// the answers are grouped, which shows at a glance which servers disagree or
// are broken.
package resolver
