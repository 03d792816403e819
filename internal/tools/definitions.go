package tools

// =============================================================================
// Assistant tool catalog - calendar, mail and tasks operations the model can
// target. The catalog is fixed; adding a tool means adding a definition here
// and a handler in the executor, both validated against each other at
// construction.
// =============================================================================

// ListEventsTool returns the tool definition for listing calendar events.
func ListEventsTool() Tool {
	return Tool{
		Name:        "list_events",
		Description: "List all events in the calendar between two RFC3339 datetimes. Use this tool to check availability before scheduling or creating any new event. Always use this before calling create_event.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"time_min": map[string]any{
					"type":        "string",
					"description": "The minimum time to list events (RFC3339 format, e.g. '2025-09-02T00:00:00+03:00')",
				},
				"time_max": map[string]any{
					"type":        "string",
					"description": "The maximum time to list events (RFC3339 format, e.g. '2025-09-03T00:00:00+03:00')",
				},
			},
			"required": []string{"time_min", "time_max"},
		},
	}
}

// CreateEventTool returns the tool definition for creating a calendar event.
func CreateEventTool() Tool {
	return Tool{
		Name:        "create_event",
		Description: "Create a new event in the primary calendar. Only use this after confirming with list_events that the time is free. Never create an event without checking availability first. Optionally add guests by email address; each guest receives an invitation email.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary": map[string]any{
					"type":        "string",
					"description": "The summary (title) of the event",
				},
				"start": map[string]any{
					"type":        "string",
					"description": "The start time of the event (RFC3339 format with UTC offset)",
				},
				"end": map[string]any{
					"type":        "string",
					"description": "The end time of the event (RFC3339 format with UTC offset)",
				},
				"guests": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Email addresses to add as guests/attendees",
				},
			},
			"required": []string{"summary", "start", "end"},
		},
		Sensitive: true,
	}
}

// UpdateEventTool returns the tool definition for updating a calendar event.
// Omitted fields keep their current values; attendees are preserved unless
// explicitly overridden.
func UpdateEventTool() Tool {
	return Tool{
		Name:        "update_event",
		Description: "Update an existing calendar event. Omitted fields keep their current values.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"event_id": map[string]any{
					"type":        "string",
					"description": "The ID of the event to update",
				},
				"summary": map[string]any{
					"type":        "string",
					"description": "The new title of the event (omit to keep current)",
				},
				"start": map[string]any{
					"type":        "string",
					"description": "The new start time (RFC3339 format, omit to keep current)",
				},
				"end": map[string]any{
					"type":        "string",
					"description": "The new end time (RFC3339 format, omit to keep current)",
				},
				"guests": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Replacement guest list (omit to keep current attendees)",
				},
			},
			"required": []string{"event_id"},
		},
	}
}

// DeleteEventTool returns the tool definition for deleting a calendar event.
func DeleteEventTool() Tool {
	return Tool{
		Name:        "delete_event",
		Description: "Delete an existing event from the primary calendar.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"event_id": map[string]any{
					"type":        "string",
					"description": "The ID of the event to delete",
				},
			},
			"required": []string{"event_id"},
		},
		Sensitive: true,
	}
}

// ListEmailsTool returns the tool definition for listing emails.
func ListEmailsTool() Tool {
	return Tool{
		Name:        "list_emails",
		Description: "List recent emails with sender, subject and body. Optionally filter with a Gmail search query such as 'is:unread after:2025/09/01'.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Gmail search query (optional)",
				},
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Maximum number of messages to return (default: 10, max: 50)",
				},
			},
			"required": []string{},
		},
	}
}

// SendEmailTool returns the tool definition for sending an email.
func SendEmailTool() Tool {
	return Tool{
		Name:        "send_email",
		Description: "Send a plain-text email from the assistant's account.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to": map[string]any{
					"type":        "string",
					"description": "Recipient email address",
				},
				"subject": map[string]any{
					"type":        "string",
					"description": "Email subject line",
				},
				"body": map[string]any{
					"type":        "string",
					"description": "Email body content",
				},
			},
			"required": []string{"to", "subject", "body"},
		},
		Sensitive: true,
	}
}

// MarkEmailReadTool returns the tool definition for marking an email as read.
func MarkEmailReadTool() Tool {
	return Tool{
		Name:        "mark_email_read",
		Description: "Mark an email as read so it is not processed again.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message_id": map[string]any{
					"type":        "string",
					"description": "The ID of the message to mark read",
				},
			},
			"required": []string{"message_id"},
		},
	}
}

// ListTasksTool returns the tool definition for listing tasks.
func ListTasksTool() Tool {
	return Tool{
		Name:        "list_tasks",
		Description: "List all tasks in a task list, completed ones included.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tasklist_id": map[string]any{
					"type":        "string",
					"description": "The ID of the task list (default: '@default')",
				},
			},
			"required": []string{},
		},
	}
}

// AddTaskTool returns the tool definition for adding a task.
func AddTaskTool() Tool {
	return Tool{
		Name:        "add_task",
		Description: "Add a new task to a task list.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "The title of the task",
				},
				"tasklist_id": map[string]any{
					"type":        "string",
					"description": "The ID of the task list (default: '@default')",
				},
			},
			"required": []string{"title"},
		},
	}
}

// CompleteTaskTool returns the tool definition for completing a task.
func CompleteTaskTool() Tool {
	return Tool{
		Name:        "complete_task",
		Description: "Mark a task as completed.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "string",
					"description": "The ID of the task to complete",
				},
				"tasklist_id": map[string]any{
					"type":        "string",
					"description": "The ID of the task list (default: '@default')",
				},
			},
			"required": []string{"task_id"},
		},
	}
}

// ProcessNewEmailTool returns the tool definition for analyzing an incoming
// email. It echoes the structured email content back to the model as an
// anchor for deciding which calendar/mail tools to apply.
func ProcessNewEmailTool() Tool {
	return Tool{
		Name:        "process_new_email",
		Description: "Process a new email and determine required actions. For rescheduling requests from contacts: check calendar availability using list_events, propose alternative times, and await confirmation before updating. For meeting confirmations: acknowledge without requiring action. Handle scheduling conflicts, calendar updates and meeting coordination based on the email content.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"from": map[string]any{
					"type":        "string",
					"description": "The sender of the email",
				},
				"subject": map[string]any{
					"type":        "string",
					"description": "The subject line of the email",
				},
				"body": map[string]any{
					"type":        "string",
					"description": "The body of the email",
				},
			},
			"required": []string{"from", "subject", "body"},
		},
	}
}

// AssistantTools returns the fixed catalog exposed to the model on every turn.
func AssistantTools() *Set {
	return NewSet([]Tool{
		ListEventsTool(),
		CreateEventTool(),
		UpdateEventTool(),
		DeleteEventTool(),
		ListEmailsTool(),
		SendEmailTool(),
		MarkEmailReadTool(),
		ListTasksTool(),
		AddTaskTool(),
		CompleteTaskTool(),
		ProcessNewEmailTool(),
	})
}
