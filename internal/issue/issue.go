// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Id identifies a known issue.
type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	ModeConfigurationId
	CookbookNotFoundId
	MalformedTraceId
	ExhaustedTraceId
	UnreplayedEntriesId
	ParamsMismatchId
	PersistRecordingFailedId
	RemoteCommandFailedId
	LiveCallDuringReplayId
)

type (
	// MarkdownMsg is the Markdown body of an issue.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	HttpLink string

	// Issue is a rendered, operator-facing explanation of a failure class.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

const docsBase = "https://wikitech.wikimedia.org/wiki/Spicerack/Cookbooks"

// Id returns the issue identifier.
func (i *Issue) Id() Id { return i.id }

// MarkdownMsg returns the Markdown body.
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// DocLinks returns a copy of the documentation links.
func (i *Issue) DocLinks() []HttpLink { return slices.Clone(i.docLinks) }

// ExtLinks returns a copy of the external links.
func (i *Issue) ExtLinks() []HttpLink { return slices.Clone(i.extLinks) }

// Render renders the issue for a terminal using a glamour style
// ("dark", "light", "notty" or a JSON style path).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range append(i.DocLinks(), i.extLinks...) {
			md.WriteString("- <")
			md.WriteString(string(link))
			md.WriteString(">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Things you can try:
- Print the effective configuration:
~~~
$ wmcs-cookbook config show
~~~
- Check the CUE syntax of ` + "`config.cue`" + `
- Remove unknown keys: the schema is closed`,
		docLinks: []HttpLink{docsBase + "#Configuration"},
	}

	modeConfigurationIssue = &Issue{
		id: ModeConfigurationId,
		mdMsg: `
# Recording and replaying are misconfigured!

Recording and replaying are mutually exclusive and both need a trace file.

## Things you can try:
- Enable only one of ` + "`COOKBOOK_RECORDING_ENABLED`" + ` and ` + "`COOKBOOK_REPLAYING_ENABLED`" + `
- Point ` + "`COOKBOOK_RECORDING_FILE`" + ` at the trace to write or read
- Or use the flags instead:
~~~
$ wmcs-cookbook run --record trace.yaml wmcs.ceph.health --monitor cloudcephmon1004
~~~`,
		docLinks: []HttpLink{docsBase + "#Recording_and_replaying"},
	}

	cookbookNotFoundIssue = &Issue{
		id: CookbookNotFoundId,
		mdMsg: `
# Cookbook not found!

No registered cookbook has that name.

## Things you can try:
- List the available cookbooks:
~~~
$ wmcs-cookbook list
~~~`,
		docLinks: []HttpLink{docsBase},
	}

	malformedTraceIssue = &Issue{
		id: MalformedTraceId,
		mdMsg: `
# The trace file is malformed!

Every record needs a ` + "`params`" + ` mapping and an ` + "`output`" + `. A ` + "`repeat_num`" + `
must be a positive count or ` + "`-1`" + ` to repeat forever.

## Things you can try:
- Check the file with:
~~~
$ wmcs-cookbook trace validate trace.yaml
~~~
- Record the run again`,
		docLinks: []HttpLink{docsBase + "#Trace_format"},
	}

	exhaustedTraceIssue = &Issue{
		id: ExhaustedTraceId,
		mdMsg: `
# The cookbook made more remote calls than were recorded!

The replayed run diverged from the recording.

## Things you can try:
- Record the run again with the same arguments
- Add ` + "`repeat_num: -1`" + ` to the last record of a polling loop`,
		docLinks: []HttpLink{docsBase + "#Trace_format"},
	}

	unreplayedEntriesIssue = &Issue{
		id: UnreplayedEntriesId,
		mdMsg: `
# Recorded calls were never replayed!

The cookbook finished before consuming the whole trace.

## Things you can try:
- Check that the replay uses the same cookbook arguments as the recording
- Drop the extra records or record the run again`,
		docLinks: []HttpLink{docsBase + "#Trace_format"},
	}

	paramsMismatchIssue = &Issue{
		id: ParamsMismatchId,
		mdMsg: `
# A replayed call does not match the recording!

Strict parameter checking is on and the live call differs from the record.

## Things you can try:
- Record the run again
- Disable the check with ` + "`replay: strict_params: false`" + ` in config.cue`,
	}

	persistRecordingFailedIssue = &Issue{
		id: PersistRecordingFailedId,
		mdMsg: `
# The recording could not be saved!

The run was stopped so no remote side effect goes unrecorded.

## Things you can try:
- Check that the trace directory exists and is writable
- Check free disk space`,
	}

	remoteCommandFailedIssue = &Issue{
		id: RemoteCommandFailedId,
		mdMsg: `
# A remote command failed!

The command exited with a non-zero status on at least one host.

## Things you can try:
- Run the command by hand on the host named in the error
- Re-run with ` + "`--verbose`" + ` to see every command sent`,
	}

	liveCallDuringReplayIssue = &Issue{
		id: LiveCallDuringReplayId,
		mdMsg: `
# A replayed run tried to reach real infrastructure!

Replays only ever read the trace. This is a bug in the executor wiring.`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		modeConfigurationIssue.Id():      modeConfigurationIssue,
		cookbookNotFoundIssue.Id():       cookbookNotFoundIssue,
		malformedTraceIssue.Id():         malformedTraceIssue,
		exhaustedTraceIssue.Id():         exhaustedTraceIssue,
		unreplayedEntriesIssue.Id():      unreplayedEntriesIssue,
		paramsMismatchIssue.Id():         paramsMismatchIssue,
		persistRecordingFailedIssue.Id(): persistRecordingFailedIssue,
		remoteCommandFailedIssue.Id():    remoteCommandFailedIssue,
		liveCallDuringReplayIssue.Id():   liveCallDuringReplayIssue,
	}
)

// Values returns every known issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

// Get returns the issue with the given id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
