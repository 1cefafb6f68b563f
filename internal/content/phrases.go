package content

var subjectTemplates = []string{
	"Following up on %s",
	"Quick question about %s",
	"Checking in about %s",
	"Thoughts on %s?",
	"Re: %s update",
	"%s - a quick note",
	"Regarding %s",
	"Quick note on %s",
	"Update on %s",
	"%s - wanted to share something",
	"Just checking in on %s",
	"A thought about %s",
	"Circling back on %s",
	"Any progress on %s?",
	"About %s",
}

var topics = []string{
	"the project timeline",
	"our last discussion",
	"the upcoming meeting",
	"the proposal",
	"Q4 planning",
	"the draft document",
	"the deliverables",
	"the partnership",
	"your recent feedback",
	"the budget review",
	"the resource allocation",
	"the strategy session",
	"the client presentation",
	"the workflow improvements",
	"the team update",
	"the quarterly goals",
	"the onboarding process",
	"the pending review",
}

var openers = []string{
	"Hope you're doing well.",
	"Thanks for your time earlier.",
	"Just following up as promised.",
	"Wanted to check in quickly.",
	"Hope this finds you well.",
	"Hope your week is going well.",
	"Thanks for getting back to me.",
	"Just a quick note.",
	"I hope things are going smoothly on your end.",
	"Circling back on this.",
	"Wanted to reach out quickly.",
	"Hope you had a good weekend.",
}

var replyOpeners = []string{
	"Thanks for reaching out.",
	"Thanks for the update.",
	"Appreciate you getting back to me.",
	"Thanks for the note.",
	"Good to hear from you.",
}

var paragraphStarters = []string{
	"I wanted to touch base regarding",
	"I've been thinking about",
	"Just wanted to let you know that",
	"Following our last conversation,",
	"I had a few thoughts about",
	"Wanted to share a quick update on",
	"I came across something relevant to",
	"As we discussed,",
	"Building on what we talked about,",
	"I wanted to get your perspective on",
}

var closers = []string{
	"Let me know your thoughts.",
	"Looking forward to hearing from you.",
	"Happy to discuss further if helpful.",
	"Please let me know if you have any questions.",
	"Feel free to reach out anytime.",
	"Let me know if there's anything I can help with.",
	"Happy to hop on a call if needed.",
	"Let me know how you'd like to proceed.",
	"Looking forward to your response.",
	"Let me know what works best for you.",
}

var signOffs = []string{
	"Best regards,",
	"Best,",
	"Thanks,",
	"Warm regards,",
	"Kind regards,",
	"Regards,",
	"Many thanks,",
	"Cheers,",
}

// sentences are filler lines. {name}, {company}, {day} and {city} are
// replaced with generated values.
var sentences = []string{
	"I wanted to make sure we're aligned on the next steps.",
	"There are a few things I'd like your input on.",
	"Let me know if the timeline still works for you.",
	"I've reviewed the materials and have some thoughts.",
	"We may need to revisit a few of the assumptions.",
	"I spoke with {name} about this on {day} and they had a similar view.",
	"The team at {company} raised a couple of good points we should consider.",
	"I'll be in {city} next week, so my replies may be a little slower.",
	"It would help to have a rough estimate before {day}.",
	"I think we can keep the scope as it is for now.",
	"Nothing urgent, but I wanted to flag it early.",
	"{name} mentioned you might have the latest numbers.",
	"I put together a short summary that I can share if useful.",
	"We made good progress on the first part last week.",
	"I'd rather settle the open questions before we move forward.",
	"Someone from {company} asked about this as well.",
	"Could we find thirty minutes to go over it on {day}?",
	"I'm happy to take the first pass at the outline.",
	"Let's keep it simple and see how the first round goes.",
	"I still need to confirm a couple of details with {name}.",
}
