package build

// CurrentCommit is set at link time with -ldflags "-X .../build.CurrentCommit=+git.<sha>".
var CurrentCommit string

const BuildVersion = "0.1.0"

func UserVersion() string {
	return BuildVersion + CurrentCommit
}
