// Package content holds the static product copy served alongside the workflows.
package content

import "careercoach/internal/types"

// HowItWorksIntro is the line shown above the steps
const HowItWorksIntro = "Our AI-powered platform simplifies your career development journey in four easy steps"

var howItWorks = []types.HowItWorksStep{
	{
		Step:        1,
		Title:       "Upload Your Resume",
		Description: "Start by uploading your resume. Our AI system will analyze your experience, skills, and qualifications.",
	},
	{
		Step:        2,
		Title:       "AI Analysis",
		Description: "Our advanced AI processes your resume to identify key strengths, potential career paths, and areas for improvement.",
	},
	{
		Step:        3,
		Title:       "Practice Interview",
		Description: "Engage in a realistic interview simulation with AI-generated questions tailored to your profile.",
	},
	{
		Step:        4,
		Title:       "Get Detailed Feedback",
		Description: "Receive comprehensive feedback on your interview performance and personalized career recommendations.",
	},
}

// HowItWorks returns the four walkthrough steps in display order
func HowItWorks() []types.HowItWorksStep {
	return append([]types.HowItWorksStep(nil), howItWorks...)
}
