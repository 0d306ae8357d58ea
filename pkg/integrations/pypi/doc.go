// Package pypi provides a client for the PyPI JSON API.
//
//	client := pypi.NewClient(backend, 24*time.Hour)
//	pkg, err := client.FetchPackage(ctx, "fastapi", false) // false = use cache
//	fmt.Println(pkg.Name, pkg.Version, pkg.Releases)
//
// [PackageInfo] carries the latest release's metadata, the raw Requires-Dist
// strings and the list of installable releases. Fully yanked releases are
// listed separately in [PackageInfo.Yanked].
//
// Requires-Dist markers are not evaluated here. Call
// [PackageInfo.Dependencies] with a [marker.Environment] to get the
// dependencies that apply to a target interpreter; extras-only dependencies
// are dropped unless the environment names the extra.
//
// [marker.Environment]: github.com/matzehuels/reqlint/pkg/marker.Environment
package pypi
