/*
Package session keeps live robot sessions and serializes access to them.

A robot can only do one thing at a time. The Manager hands out exclusive
access per session ID with reference-counted local locks, and optionally a
distributed lock so several API replicas can share a pool of robots.
*/
package session
