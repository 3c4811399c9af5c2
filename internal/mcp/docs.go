package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `casetrack hosts shared QA test-case sessions. Each session is identified by a
6-character code and holds one ordered list of test cases plus the participants
currently online.

Tools are read-only:
1) get_session(code): the full case list, owner and version.
2) list_participants(code): who is online, in join order, with their role.
3) get_report_input(code, summary?): failed and commented cases plus status
   counts. Analyse the "analysisSubset" field; it holds the failures, or the
   commented cases when nothing failed.

Docs:
- casetrack://docs/index
- casetrack://docs/statuses
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "casetrack://docs/index",
		Name:        "docs_index",
		Title:       "casetrack docs index",
		Description: "What the session tools return and how to read them.",
		Content: `# casetrack docs index

- Session codes are 6 characters, case-insensitive. Surrounding spaces are ignored.
- ` + "`version`" + ` increases by one on every write of the case list.
- Case fields: process, caseId, description, testData, steps, expectedResult,
  evidence, comments, status, lastEditor, lastEditedAt.
- ` + "`lastEditor`" + ` and ` + "`lastEditedAt`" + ` change only when the status changes.

Read casetrack://docs/statuses before summarising results.
`,
	},
	{
		URI:         "casetrack://docs/statuses",
		Name:        "docs_statuses",
		Title:       "Test case statuses",
		Description: "Status meanings and the rules attached to them.",
		Content: `# Test case statuses

| Status | Meaning |
| --- | --- |
| Pending | not run yet (default) |
| Passed | ran and met the expected result |
| Failed | ran and did not; always has comments and evidence |
| NotApplicable | skipped on purpose |

Percent complete counts every case that is no longer Pending.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
