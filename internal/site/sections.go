// Package site builds the single-page model (home, about, services, pricing)
// and renders it with the embedded templates.
package site

// Section is one full-screen panel of the page, in display order.
type Section struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	NextTitle string `json:"next_title,omitempty"` // shown in the transition overlay
}

// Button is a call-to-action link.
type Button struct {
	Text    string
	Href    string
	Primary bool
}

// Hero is the home section.
type Hero struct {
	Title    string
	Subtitle string
	Buttons  []Button
}

// About is the mission and vision copy.
type About struct {
	Mission string
	Vision  string
}

// Service is one card in the services grid.
type Service struct {
	Title       string
	Description string
}

var sections = []Section{
	{ID: "home", Title: "Home"},
	{ID: "about", Title: "About"},
	{ID: "services", Title: "Services"},
	{ID: "pricing", Title: "Pricing"},
}

// Sections returns the page sections in order, each knowing the title of
// the one after it.
func Sections() []Section {
	out := make([]Section, len(sections))
	copy(out, sections)
	for i := range out {
		if i+1 < len(out) {
			out[i].NextTitle = out[i+1].Title
		}
	}
	return out
}

// HomeContent returns the hero copy.
func HomeContent() Hero {
	return Hero{
		Title:    "Design the Future",
		Subtitle: "We are a digital agency specializing in futuristic web experiences and cutting-edge design.",
		Buttons: []Button{
			{Text: "Get Started", Href: "#pricing", Primary: true},
			{Text: "Learn More", Href: "#about"},
		},
	}
}

// AboutContent returns the mission and vision copy.
func AboutContent() About {
	return About{
		Mission: "To push the boundaries of digital design, creating immersive and intuitive experiences that connect people to technology in meaningful new ways. We believe in a future where user interfaces are not just functional, but truly a work of art.",
		Vision:  "To be a leading force in the next generation of web development, shaping the digital landscape with innovative solutions and a relentless pursuit of excellence.",
	}
}

// ServicesContent returns the four service cards.
func ServicesContent() []Service {
	return []Service{
		{Title: "Web Development", Description: "Crafting bespoke websites and web applications with a focus on performance, scalability, and security."},
		{Title: "UI/UX Design", Description: "Designing intuitive, user-centric interfaces that are not only beautiful but also a joy to use."},
		{Title: "Digital Strategy", Description: "Developing a clear and actionable digital roadmap to help your business achieve its goals and reach new audiences."},
		{Title: "Brand Identity", Description: "Building a strong, cohesive brand identity that resonates with your target market and sets you apart from the competition."},
	}
}
