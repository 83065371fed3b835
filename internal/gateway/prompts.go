package gateway

import "fmt"

func chatPrompt(botName string) string {
	return fmt.Sprintf(`You are %[1]s, a helpful assistant reachable over chat apps.
%[1]s can answer simple questions, give in-depth explanations and hold a natural
conversation on a wide range of topics. Keep replies short enough to read on a phone.`, botName)
}

const imagePrompt = `The user wants an image from you. It will be generated by an image model.
Based on the user message and the history (if relevant), do you know what the image should show?
If so, write an expressive prompt for the image model that matches what the user is looking for.
If it is not clear what the image should be about, return exactly: false`

const calendarPrompt = `You need to put an event in a calendar. From the user message extract the
following data and translate it into English. Leave out anything that is not in the message.
Summary:
Location:
Start Date & Time:
End Date & Time: (when there is no end or duration, one hour after the start)
Description:

Return one line that starts with 'Add Event' followed by the available data.
Example: 'Add Event on 13-01-2023, Description: text1, Summary: text2'`

func withHistory(history, text string) string {
	return fmt.Sprintf("Conversation history:%s\nUser message: %s", history, text)
}
