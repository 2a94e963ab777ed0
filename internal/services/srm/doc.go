// Package srm integrates Steam ROM Manager: it writes the manifests and
// configuration files SRM reads, downloads the SRM binary when it is
// missing, and drives the `enable` and `add` command-line steps through the
// bounded process runner.
package srm
