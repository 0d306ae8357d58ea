package integrations_test

import (
	"fmt"

	"github.com/matzehuels/reqlint/pkg/integrations"
)

func ExampleNormalizePkgName() {
	fmt.Println(integrations.NormalizePkgName("FastAPI"))
	fmt.Println(integrations.NormalizePkgName("importlib_metadata"))
	fmt.Println(integrations.NormalizePkgName("zope.interface"))
	// Output:
	// fastapi
	// importlib-metadata
	// zope-interface
}

func ExampleNormalizeRepoURL() {
	fmt.Println(integrations.NormalizeRepoURL("git@github.com:pallets/flask.git"))
	fmt.Println(integrations.NormalizeRepoURL("git+https://github.com/psf/requests.git"))
	// Output:
	// https://github.com/pallets/flask
	// https://github.com/psf/requests
}

func ExampleRepoURL() {
	urls := map[string]string{
		"Documentation": "https://flask.palletsprojects.com/",
		"Source":        "https://github.com/pallets/flask/",
	}
	fmt.Println(integrations.RepoURL(urls))
	// Output:
	// https://github.com/pallets/flask/
}
