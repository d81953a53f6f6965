package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aescanero/dago-node-relnotes/internal/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ExampleTemplate renders the data written by the example command
const ExampleTemplate = `# Release notes for build {{buildDetails.buildNumber}}

## Features
{{#filter workItems "item.fields['System.WorkItemType'] == 'User Story'"}}
* #{{id}} {{lookup fields 'System.Title'}}
{{else}}
{{emptySetText}}
{{/filter}}

## Bugs
{{#filter workItems "item.fields['System.WorkItemType'] == 'Bug'"}}
* #{{id}} {{lookup fields 'System.Title'}}
{{else}}
{{emptySetText}}
{{/filter}}

## Commits
{{#each commits}}
* {{id}} {{message}} ({{author.displayName}})
{{/each}}
`

// exampleData returns a small release to start a data file from
func exampleData(now time.Time) *DataFile {
	author := model.Identity{DisplayName: "Jane Doe", UniqueName: "jane@example.com"}
	workItem := func(id int, kind, title string) model.WorkItem {
		return model.WorkItem{
			ID: id,
			Fields: map[string]interface{}{
				model.FieldWorkItemType: kind,
				model.FieldTitle:        title,
				model.FieldState:        "Done",
			},
		}
	}

	return &DataFile{
		WorkItems: []model.WorkItem{
			workItem(34, "User Story", "Export notes as Markdown"),
			workItem(35, "Bug", "Empty sections are not rendered"),
		},
		Commits: []model.Change{
			{ID: "a1b2c3d", Message: "Add markdown export", Author: author, Timestamp: &now},
		},
		BuildDetails: model.Build{
			ID:           345,
			BuildNumber:  now.Format("20060102") + ".1",
			Definition:   &model.Definition{ID: 1, Name: "release-pipeline"},
			SourceBranch: "refs/heads/main",
			RequestedFor: &author,
			FinishTime:   &now,
		},
		ReleaseDetails: model.Release{
			ID:        12,
			Name:      "Release-12",
			CreatedBy: &author,
			CreatedOn: &now,
		},
		EmptySetText: "No changes",
	}
}

// NewExampleCmd creates the example command, which writes a data file and a
// template that render together
func NewExampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example DIR",
		Short: "Write an example data file and template to DIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}

			data, err := marshalExample(exampleData(time.Now().UTC().Truncate(time.Second)))
			if err != nil {
				return err
			}

			dataPath := filepath.Join(dir, "data.yaml")
			templatePath := filepath.Join(dir, "notes.hbs")
			if err := os.WriteFile(dataPath, data, 0o644); err != nil {
				return fmt.Errorf("failed to write data file: %w", err)
			}
			if err := os.WriteFile(templatePath, []byte(ExampleTemplate), 0o644); err != nil {
				return fmt.Errorf("failed to write template: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "relnotes render --template %s --data %s\n", templatePath, dataPath)
			return nil
		},
	}
}

func marshalExample(data *DataFile) ([]byte, error) {
	out, err := yaml.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal example data: %w", err)
	}
	return out, nil
}
