package cmd

// Restricts which commits `git log` walks.
type LogFilters struct {
	AllBranches bool // Walk every ref instead of just HEAD
	MergesOnly  bool // Only commits with more than one parent
}

// Turn into CLI args we can pass to `git log`
func (f LogFilters) ToArgs() []string {
	args := []string{}

	if f.AllBranches {
		args = append(args, "--all")
	}

	if f.MergesOnly {
		args = append(args, "--merges")
	}

	return args
}
