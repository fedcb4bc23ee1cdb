package resources

import "embed"

//go:embed migrations/*.sql prefilter.yml
var FS embed.FS
